package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType discriminates the two entry flows.
type TransactionType string

const (
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

// ConversationState tags the progress of a guided entry flow. Idle is
// represented by the absence of a PendingTransaction, not by a state
// value, so a PendingTransaction always carries a post-entry state.
type ConversationState int

const (
	StateTypeSelected ConversationState = iota + 1
	StateCategorySelected
	StateAwaitingAmount
	StateAwaitingCommentDecision
	StateAwaitingComment
)

func (s ConversationState) String() string {
	switch s {
	case StateTypeSelected:
		return "type_selected"
	case StateCategorySelected:
		return "category_selected"
	case StateAwaitingAmount:
		return "awaiting_amount"
	case StateAwaitingCommentDecision:
		return "awaiting_comment_decision"
	case StateAwaitingComment:
		return "awaiting_comment"
	}
	return "unknown"
}

// PendingTransaction is the transient per-user record of an in-progress
// guided entry. At most one exists per user; it is destroyed on commit,
// cancellation or restart.
type PendingTransaction struct {
	// ID correlates the log lines of one guided entry.
	ID          string
	UserID      int64
	Type        TransactionType
	Category    string
	Subcategory string
	Date        time.Time
	Amount      decimal.Decimal
	AmountSet   bool
	Comment     string
	State       ConversationState
}

// NewPendingTransaction starts a fresh expense entry for the user. The
// type selector keyboard lets the user flip it to income before picking
// a category.
func NewPendingTransaction(userID int64, now time.Time) *PendingTransaction {
	return &PendingTransaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   TypeExpense,
		Date:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		State:  StateTypeSelected,
	}
}
