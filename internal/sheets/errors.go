package sheets

import "fmt"

// AccessCause classifies why a spreadsheet operation failed.
type AccessCause int

const (
	CauseUnknown AccessCause = iota
	CauseNotFound
	CausePermission
	CauseUnauthorized
	CauseNoActiveSheet
)

func (c AccessCause) String() string {
	switch c {
	case CauseNotFound:
		return "spreadsheet not found"
	case CausePermission:
		return "permission denied"
	case CauseUnauthorized:
		return "authorization invalid"
	case CauseNoActiveSheet:
		return "no active spreadsheet selected"
	}
	return "spreadsheet access failed"
}

// SheetAccessError is the classified failure surfaced to the bot layer.
// The stored credential is never touched because of one.
type SheetAccessError struct {
	Cause         AccessCause
	SpreadsheetID string
	Err           error
}

func (e *SheetAccessError) Error() string {
	if e.SpreadsheetID == "" {
		return fmt.Sprintf("sheets: %s", e.Cause)
	}
	return fmt.Sprintf("sheets: %s (%s)", e.Cause, e.SpreadsheetID)
}

func (e *SheetAccessError) Unwrap() error { return e.Err }
