// Package sheets exposes the per-user client cache and the high-level
// spreadsheet operations the bot commits transactions through.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ivanoskov/sheets_bot/internal/auth"
	"github.com/ivanoskov/sheets_bot/internal/repository"
)

// Worksheet names and their header rows. Income rows carry no
// subcategory column.
const (
	SheetExpenses = "expenses"
	SheetIncome   = "income"
)

var (
	ExpenseHeaders = []string{"Date", "User", "Category", "Subcategory", "Amount", "Timestamp", "Comment"}
	IncomeHeaders  = []string{"Date", "User", "Category", "Amount", "Timestamp", "Comment"}
)

// clientSource abstracts the ClientCache for tests.
type clientSource interface {
	Client(ctx context.Context, userID int64) (*Client, error)
	ClearCache(userID int64)
}

// Operations provides the spreadsheet operations layer: worksheet
// validation/bootstrap on /sheet, row appends on commit, row reads for
// reports.
type Operations struct {
	clients clientSource
	repo    repository.Repository
	log     zerolog.Logger
}

func NewOperations(clients clientSource, repo repository.Repository, log zerolog.Logger) *Operations {
	return &Operations{
		clients: clients,
		repo:    repo,
		log:     log.With().Str("component", "sheets_ops").Logger(),
	}
}

// SetupForUser validates the spreadsheet, makes sure the expense and
// income worksheets exist with their header rows, and persists it as the
// user's active sheet. Returns the spreadsheet title.
func (o *Operations) SetupForUser(ctx context.Context, userID int64, spreadsheetID string) (string, error) {
	client, err := o.client(ctx, userID)
	if err != nil {
		return "", err
	}

	info, err := client.Spreadsheet(ctx, spreadsheetID)
	if err != nil {
		return "", o.classified(userID, err)
	}

	if err := o.ensureWorksheets(ctx, client, spreadsheetID, info); err != nil {
		return "", o.classified(userID, err)
	}

	if err := o.repo.SetActiveSheet(ctx, userID, spreadsheetID, info.Title); err != nil {
		return "", fmt.Errorf("persisting sheet selection: %w", err)
	}

	o.log.Info().Int64("user_id", userID).Str("spreadsheet_id", spreadsheetID).
		Str("title", info.Title).Msg("active spreadsheet configured")
	return info.Title, nil
}

// AppendRow appends one row to the named worksheet of the user's active
// spreadsheet.
func (o *Operations) AppendRow(ctx context.Context, userID int64, sheetName string, values []string) error {
	sheet, err := o.repo.ActiveSheet(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading sheet selection: %w", err)
	}
	if sheet == nil {
		return &SheetAccessError{Cause: CauseNoActiveSheet}
	}

	client, err := o.client(ctx, userID)
	if err != nil {
		return err
	}

	if err := client.AppendRow(ctx, sheet.SpreadsheetID, sheetName, values); err != nil {
		return o.classified(userID, err)
	}
	o.log.Info().Int64("user_id", userID).Str("sheet", sheetName).Msg("row appended")
	return nil
}

// Rows reads the data rows (header excluded) of the named worksheet of
// the user's active spreadsheet.
func (o *Operations) Rows(ctx context.Context, userID int64, sheetName string) ([][]string, error) {
	sheet, err := o.repo.ActiveSheet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading sheet selection: %w", err)
	}
	if sheet == nil {
		return nil, &SheetAccessError{Cause: CauseNoActiveSheet}
	}

	client, err := o.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := client.Values(ctx, sheet.SpreadsheetID, sheetName+"!A2:Z")
	if err != nil {
		return nil, o.classified(userID, err)
	}
	return rows, nil
}

// ForgetUser drops the cached client and the persisted sheet selections
// (logout path).
func (o *Operations) ForgetUser(ctx context.Context, userID int64) error {
	o.clients.ClearCache(userID)
	return o.repo.DeleteSheets(ctx, userID)
}

// client fetches the user's API client. A transient provider failure
// (credential preserved, retry may succeed) is kept distinct from a
// genuinely absent or rejected credential, which needs re-authorization.
func (o *Operations) client(ctx context.Context, userID int64) (*Client, error) {
	client, err := o.clients.Client(ctx, userID)
	if client != nil {
		return client, nil
	}
	var transient *auth.TransientError
	if errors.As(err, &transient) {
		return nil, &SheetAccessError{Cause: CauseUnknown, Err: err}
	}
	return nil, &SheetAccessError{Cause: CauseUnauthorized, Err: err}
}

// classified evicts the cached client when the API said the credential
// is no good, then passes the error through.
func (o *Operations) classified(userID int64, err error) error {
	if accessErr, ok := err.(*SheetAccessError); ok && accessErr.Cause == CauseUnauthorized {
		o.clients.ClearCache(userID)
	}
	return err
}

// ensureWorksheets creates missing worksheets, writes header rows into
// empty ones and warns on header drift. Existing headers are never
// rewritten.
func (o *Operations) ensureWorksheets(ctx context.Context, client *Client, spreadsheetID string, info *SpreadsheetInfo) error {
	required := map[string][]string{
		SheetExpenses: ExpenseHeaders,
		SheetIncome:   IncomeHeaders,
	}

	existing := make(map[string]bool, len(info.SheetTitles))
	for _, title := range info.SheetTitles {
		existing[title] = true
	}

	for _, name := range []string{SheetExpenses, SheetIncome} {
		headers := required[name]
		if !existing[name] {
			if err := client.AddWorksheet(ctx, spreadsheetID, name, len(headers)); err != nil {
				return err
			}
			if err := client.AppendRow(ctx, spreadsheetID, name, headers); err != nil {
				return err
			}
			o.log.Info().Str("sheet", name).Str("spreadsheet_id", spreadsheetID).Msg("worksheet created")
			continue
		}

		rows, err := client.Values(ctx, spreadsheetID, name+"!1:1")
		if err != nil {
			return err
		}
		if len(rows) == 0 || len(rows[0]) == 0 {
			if err := client.AppendRow(ctx, spreadsheetID, name, headers); err != nil {
				return err
			}
			continue
		}
		if !equalHeaders(rows[0], headers) {
			o.log.Warn().Str("sheet", name).Str("spreadsheet_id", spreadsheetID).
				Strs("got", rows[0]).Msg("worksheet headers differ from expected")
		}
	}
	return nil
}

func equalHeaders(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
