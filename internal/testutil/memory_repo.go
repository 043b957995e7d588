// Package testutil provides in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/ivanoskov/sheets_bot/internal/model"
)

// MemoryRepository implements repository.Repository in memory. It
// mirrors the PostgresRepository contract, including the single-active-
// sheet invariant of SetActiveSheet.
type MemoryRepository struct {
	mu     sync.Mutex
	users  map[int64]model.User
	tokens map[int64]model.AuthToken
	sheets []model.UserSheet

	// FailSaveToken makes SaveAuthToken return this error when set.
	FailSaveToken error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:  make(map[int64]model.User),
		tokens: make(map[int64]model.AuthToken),
	}
}

func (r *MemoryRepository) UpsertUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = *user
	return nil
}

func (r *MemoryRepository) SaveAuthToken(_ context.Context, token *model.AuthToken) error {
	if r.FailSaveToken != nil {
		return r.FailSaveToken
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.UserID] = *token
	return nil
}

func (r *MemoryRepository) GetAuthToken(_ context.Context, userID int64) (*model.AuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[userID]
	if !ok {
		return nil, nil
	}
	copied := token
	return &copied, nil
}

func (r *MemoryRepository) DeleteAuthToken(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, userID)
	return nil
}

func (r *MemoryRepository) SetActiveSheet(_ context.Context, userID int64, spreadsheetID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := false
	for i := range r.sheets {
		if r.sheets[i].UserID != userID {
			continue
		}
		if r.sheets[i].SpreadsheetID == spreadsheetID {
			r.sheets[i].SpreadsheetTitle = title
			r.sheets[i].IsActive = true
			updated = true
		} else {
			r.sheets[i].IsActive = false
		}
	}
	if !updated {
		r.sheets = append(r.sheets, model.UserSheet{
			ID:               uint(len(r.sheets) + 1),
			UserID:           userID,
			SpreadsheetID:    spreadsheetID,
			SpreadsheetTitle: title,
			IsActive:         true,
		})
	}
	return nil
}

func (r *MemoryRepository) ActiveSheet(_ context.Context, userID int64) (*model.UserSheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sheets {
		if r.sheets[i].UserID == userID && r.sheets[i].IsActive {
			copied := r.sheets[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) DeleteSheets(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.sheets[:0]
	for _, sheet := range r.sheets {
		if sheet.UserID != userID {
			kept = append(kept, sheet)
		}
	}
	r.sheets = kept
	return nil
}

// Sheets returns a snapshot of all sheet rows, for invariant assertions.
func (r *MemoryRepository) Sheets() []model.UserSheet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.UserSheet, len(r.sheets))
	copy(out, r.sheets)
	return out
}

// HasToken reports whether a credential row exists for the user.
func (r *MemoryRepository) HasToken(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tokens[userID]
	return ok
}
