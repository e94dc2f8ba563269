package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

// ReportService answers read-only questions over a span of the ledger.
type ReportService struct {
	repo  *storage.SQLiteRepository
	clock clock
}

func NewReportService(repo *storage.SQLiteRepository, loc *time.Location) *ReportService {
	return &ReportService{repo: repo, clock: newClock(loc)}
}

// TransactionLine is a ledger event with its category name resolved.
type TransactionLine struct {
	core.CashFlow
	CategoryName string
}

// Generate totals income, expense and transfers within [from, to] and breaks
// the expense down by category. Events without a category are reported as
// Uncategorized.
func (s *ReportService) Generate(ctx context.Context, userID core.UserID, from, to time.Time) (core.Report, error) {
	if from.IsZero() || to.IsZero() {
		return core.Report{}, core.Invalidf("from and to are required")
	}
	if to.Before(from) {
		return core.Report{}, core.Invalidf("to must not be before from")
	}

	report := core.Report{From: from, To: to}
	err := s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		var err error
		if report.TotalIncome, err = q.SumCashFlows(ctx, storage.CashFlowFilter{UserID: userID, Type: core.Income, Start: from, End: to}); err != nil {
			return err
		}
		if report.TotalExpense, err = q.SumCashFlows(ctx, storage.CashFlowFilter{UserID: userID, Type: core.Expense, Start: from, End: to}); err != nil {
			return err
		}
		if report.ExpenseByCategory, err = q.ExpenseByCategory(ctx, userID, from, to); err != nil {
			return err
		}
		for i, ca := range report.ExpenseByCategory {
			if ca.CategoryID == nil {
				report.ExpenseByCategory[i].Name = core.CategoryUncategorized
			}
		}
		report.TransferTotal, err = q.SumTransfers(ctx, userID, from, to)
		return err
	})
	if err != nil {
		return core.Report{}, err
	}
	report.Balance = report.TotalIncome.Sub(report.TotalExpense)

	slog.DebugContext(ctx, "Generated report",
		"user_id", userID,
		"from", from.Format(time.RFC3339),
		"to", to.Format(time.RFC3339),
		"income_cents", report.TotalIncome.Cents,
		"expense_cents", report.TotalExpense.Cents)
	return report, nil
}

// SpendingTrend buckets the expense up to today in the home zone: the last
// seven days, the days of the current month, or the months of the current
// year.
func (s *ReportService) SpendingTrend(ctx context.Context, userID core.UserID, period string) (core.SpendingTrend, error) {
	now := s.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.clock.loc)

	p := core.ParseTrendPeriod(period)
	var points []core.TrendPoint
	switch p {
	case core.TrendMonth:
		for d := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, s.clock.loc); !d.After(today); d = d.AddDate(0, 0, 1) {
			points = append(points, core.TrendPoint{Label: strconv.Itoa(d.Day()), Start: d, Current: d.Equal(today)})
		}
	case core.TrendYear:
		for m := time.January; m <= today.Month(); m++ {
			start := time.Date(today.Year(), m, 1, 0, 0, 0, 0, s.clock.loc)
			points = append(points, core.TrendPoint{Label: m.String()[:3], Start: start, Current: m == today.Month()})
		}
	default:
		for d := today.AddDate(0, 0, -6); !d.After(today); d = d.AddDate(0, 0, 1) {
			points = append(points, core.TrendPoint{Label: d.Weekday().String()[:3], Start: d, Current: d.Equal(today)})
		}
	}

	err := s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		for i := range points {
			end := points[i].Start.AddDate(0, 0, 1)
			if p == core.TrendYear {
				end = points[i].Start.AddDate(0, 1, 0)
			}
			amount, err := q.SumCashFlows(ctx, storage.CashFlowFilter{
				UserID: userID,
				Type:   core.Expense,
				Start:  points[i].Start,
				End:    end.Add(-time.Nanosecond),
			})
			if err != nil {
				return err
			}
			points[i].Amount = amount
		}
		return nil
	})
	if err != nil {
		return core.SpendingTrend{}, err
	}
	return core.SpendingTrend{Period: p, Points: points}, nil
}

// Transactions lists the events within [from, to], oldest first, for export.
// Zero bounds are open.
func (s *ReportService) Transactions(ctx context.Context, userID core.UserID, from, to time.Time) ([]TransactionLine, error) {
	var out []TransactionLine
	err := s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		categories, err := q.ListCategories(ctx, userID)
		if err != nil {
			return err
		}
		names := make(map[int64]string, len(categories))
		for _, c := range categories {
			names[c.ID] = c.Name
		}

		flows, err := q.ListCashFlows(ctx, storage.CashFlowFilter{UserID: userID, Start: from, End: to})
		if err != nil {
			return err
		}
		out = make([]TransactionLine, 0, len(flows))
		for i := len(flows) - 1; i >= 0; i-- {
			line := TransactionLine{CashFlow: flows[i]}
			if flows[i].CategoryID != nil {
				line.CategoryName = names[*flows[i].CategoryID]
			}
			out = append(out, line)
		}
		return nil
	})
	return out, err
}
