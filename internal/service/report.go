// Package service builds aggregated views over the recorded
// transactions.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ivanoskov/sheets_bot/internal/sheets"
)

// RowSource reads raw data rows from a user's active spreadsheet.
type RowSource interface {
	Rows(ctx context.Context, userID int64, sheetName string) ([][]string, error)
}

// CategoryTotal is one category's aggregate for the period.
type CategoryTotal struct {
	Name  string
	Total decimal.Decimal
}

// Report is the monthly summary for one user.
type Report struct {
	Period        string
	TotalExpenses decimal.Decimal
	TotalIncome   decimal.Decimal
	Expenses      []CategoryTotal
	Income        []CategoryTotal
}

// ReportService aggregates sheet rows into monthly reports.
type ReportService struct {
	rows RowSource
	log  zerolog.Logger
	now  func() time.Time
}

func NewReportService(rows RowSource, log zerolog.Logger) *ReportService {
	return &ReportService{
		rows: rows,
		log:  log.With().Str("component", "report").Logger(),
		now:  time.Now,
	}
}

// MonthlyReport sums the current month's expenses and income, grouped
// by category. Rows with an unreadable date or amount are skipped and
// logged, not fatal.
func (s *ReportService) MonthlyReport(ctx context.Context, userID int64) (*Report, error) {
	month := s.now().Format("2006-01")

	expenses, err := s.rows.Rows(ctx, userID, sheets.SheetExpenses)
	if err != nil {
		return nil, err
	}
	income, err := s.rows.Rows(ctx, userID, sheets.SheetIncome)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Period:        month,
		TotalExpenses: decimal.Zero,
		TotalIncome:   decimal.Zero,
	}
	report.Expenses, report.TotalExpenses = s.sumByCategory(expenses, month, 4)
	report.Income, report.TotalIncome = s.sumByCategory(income, month, 3)
	return report, nil
}

// sumByCategory folds rows of one sheet into per-category totals.
// amountCol differs between the two sheets because income rows carry
// no subcategory column.
func (s *ReportService) sumByCategory(rows [][]string, month string, amountCol int) ([]CategoryTotal, decimal.Decimal) {
	byName := make(map[string]decimal.Decimal)
	total := decimal.Zero

	for _, row := range rows {
		if len(row) <= amountCol {
			continue
		}
		if !strings.HasPrefix(row[0], month) {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(row[amountCol]))
		if err != nil {
			s.log.Warn().Str("value", row[amountCol]).Msg("skipping row with unreadable amount")
			continue
		}
		category := row[2]
		byName[category] = byName[category].Add(amount)
		total = total.Add(amount)
	}

	totals := make([]CategoryTotal, 0, len(byName))
	for name, sum := range byName {
		totals = append(totals, CategoryTotal{Name: name, Total: sum})
	}
	sort.Slice(totals, func(i, j int) bool {
		if !totals[i].Total.Equal(totals[j].Total) {
			return totals[i].Total.GreaterThan(totals[j].Total)
		}
		return totals[i].Name < totals[j].Name
	})
	return totals, total
}

// Text renders the report as a Telegram Markdown message.
func (r *Report) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *Report for %s*\n\n", r.Period)

	fmt.Fprintf(&sb, "💸 Expenses: *%s*\n", r.TotalExpenses.StringFixed(2))
	for _, c := range r.Expenses {
		fmt.Fprintf(&sb, "  • %s: %s\n", c.Name, c.Total.StringFixed(2))
	}

	fmt.Fprintf(&sb, "\n💰 Income: *%s*\n", r.TotalIncome.StringFixed(2))
	for _, c := range r.Income {
		fmt.Fprintf(&sb, "  • %s: %s\n", c.Name, c.Total.StringFixed(2))
	}

	balance := r.TotalIncome.Sub(r.TotalExpenses)
	fmt.Fprintf(&sb, "\nBalance: *%s*", balance.StringFixed(2))

	if len(r.Expenses) == 0 && len(r.Income) == 0 {
		return fmt.Sprintf("📊 *Report for %s*\n\nNo transactions recorded this month yet.", r.Period)
	}
	return sb.String()
}
