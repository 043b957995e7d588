package repository

import (
	"context"

	"github.com/ivanoskov/sheets_bot/internal/model"
)

// Repository is the persistence contract consumed by the authorization
// manager and the spreadsheet operations layer.
type Repository interface {
	// Users
	UpsertUser(ctx context.Context, user *model.User) error

	// Encrypted credentials
	SaveAuthToken(ctx context.Context, token *model.AuthToken) error
	GetAuthToken(ctx context.Context, userID int64) (*model.AuthToken, error)
	DeleteAuthToken(ctx context.Context, userID int64) error

	// Active sheet selection
	SetActiveSheet(ctx context.Context, userID int64, spreadsheetID, title string) error
	ActiveSheet(ctx context.Context, userID int64) (*model.UserSheet, error)
	DeleteSheets(ctx context.Context, userID int64) error
}
