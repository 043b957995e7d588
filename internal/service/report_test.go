package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivanoskov/sheets_bot/internal/sheets"
)

type scriptedRows struct {
	expenses [][]string
	income   [][]string
	err      error
}

func (s *scriptedRows) Rows(_ context.Context, _ int64, sheetName string) ([][]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	if sheetName == sheets.SheetIncome {
		return s.income, nil
	}
	return s.expenses, nil
}

func newTestReportService(rows *scriptedRows) *ReportService {
	s := NewReportService(rows, zerolog.Nop())
	s.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestMonthlyReportAggregatesByCategory(t *testing.T) {
	rows := &scriptedRows{
		expenses: [][]string{
			{"2026-08-01", "42", "FOOD", "Groceries", "10.50", "ts", ""},
			{"2026-08-15", "42", "FOOD", "Restaurants", "20", "ts", ""},
			{"2026-08-20", "42", "HOME", "Rent", "500", "ts", ""},
		},
		income: [][]string{
			{"2026-08-05", "42", "Salary", "1000", "ts", ""},
		},
	}

	report, err := newTestReportService(rows).MonthlyReport(context.Background(), 42)
	if err != nil {
		t.Fatalf("MonthlyReport: %v", err)
	}

	if report.Period != "2026-08" {
		t.Errorf("Period = %q", report.Period)
	}
	if got := report.TotalExpenses.String(); got != "530.5" {
		t.Errorf("TotalExpenses = %s, want 530.5", got)
	}
	if got := report.TotalIncome.String(); got != "1000" {
		t.Errorf("TotalIncome = %s, want 1000", got)
	}

	// Sorted by amount, largest first.
	if len(report.Expenses) != 2 || report.Expenses[0].Name != "HOME" || report.Expenses[1].Name != "FOOD" {
		t.Fatalf("Expenses = %+v", report.Expenses)
	}
	if got := report.Expenses[1].Total.String(); got != "30.5" {
		t.Errorf("FOOD total = %s, want 30.5", got)
	}
}

func TestMonthlyReportFiltersOtherMonths(t *testing.T) {
	rows := &scriptedRows{
		expenses: [][]string{
			{"2026-07-31", "42", "FOOD", "Groceries", "99", "ts", ""},
			{"2026-08-01", "42", "FOOD", "Groceries", "1", "ts", ""},
			{"2025-08-01", "42", "FOOD", "Groceries", "99", "ts", ""},
		},
	}

	report, err := newTestReportService(rows).MonthlyReport(context.Background(), 42)
	if err != nil {
		t.Fatalf("MonthlyReport: %v", err)
	}
	if got := report.TotalExpenses.String(); got != "1" {
		t.Fatalf("TotalExpenses = %s, want only the current month", got)
	}
}

func TestMonthlyReportSkipsMalformedRows(t *testing.T) {
	rows := &scriptedRows{
		expenses: [][]string{
			{"2026-08-01", "42", "FOOD", "Groceries", "not-a-number", "ts", ""},
			{"2026-08-01", "42"},
			{"2026-08-02", "42", "FOOD", "Groceries", "5", "ts", ""},
		},
	}

	report, err := newTestReportService(rows).MonthlyReport(context.Background(), 42)
	if err != nil {
		t.Fatalf("MonthlyReport: %v", err)
	}
	if got := report.TotalExpenses.String(); got != "5" {
		t.Fatalf("TotalExpenses = %s, want the one readable row", got)
	}
}

func TestMonthlyReportPropagatesErrors(t *testing.T) {
	wantErr := &sheets.SheetAccessError{Cause: sheets.CauseNoActiveSheet}
	rows := &scriptedRows{err: wantErr}

	_, err := newTestReportService(rows).MonthlyReport(context.Background(), 42)
	var accessErr *sheets.SheetAccessError
	if !errors.As(err, &accessErr) || accessErr.Cause != sheets.CauseNoActiveSheet {
		t.Fatalf("err = %v", err)
	}
}

func TestReportText(t *testing.T) {
	rows := &scriptedRows{
		expenses: [][]string{
			{"2026-08-01", "42", "FOOD", "Groceries", "30", "ts", ""},
		},
		income: [][]string{
			{"2026-08-05", "42", "Salary", "100", "ts", ""},
		},
	}
	report, _ := newTestReportService(rows).MonthlyReport(context.Background(), 42)

	text := report.Text()
	for _, want := range []string{"2026-08", "FOOD: 30.00", "Salary: 100.00", "Balance: *70.00*"} {
		if !strings.Contains(text, want) {
			t.Errorf("report text lacks %q:\n%s", want, text)
		}
	}
}

func TestReportTextEmptyMonth(t *testing.T) {
	report, _ := newTestReportService(&scriptedRows{}).MonthlyReport(context.Background(), 42)

	if !strings.Contains(report.Text(), "No transactions") {
		t.Fatalf("empty report text = %q", report.Text())
	}
}
