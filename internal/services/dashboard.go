package services

import (
	"context"
	"errors"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

const dashboardRecentLimit = 10

// DashboardService assembles the overview screen.
type DashboardService struct {
	repo  *storage.SQLiteRepository
	clock clock
}

func NewDashboardService(repo *storage.SQLiteRepository, loc *time.Location) *DashboardService {
	return &DashboardService{repo: repo, clock: newClock(loc)}
}

// Get reads every figure of the dashboard from one snapshot.
func (s *DashboardService) Get(ctx context.Context, userID core.UserID, month string) (core.Dashboard, error) {
	ym, start, end, err := s.clock.monthRange(month)
	if err != nil {
		return core.Dashboard{}, err
	}

	var d core.Dashboard
	err = s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		var err error
		if d.TotalBalance, err = NewCalculator(q, s.clock.loc).TotalBalance(ctx, userID); err != nil {
			return err
		}
		if d.Accounts, err = q.AccountBalances(ctx, userID); err != nil {
			return err
		}
		if d.Month, err = monthOverview(ctx, q, userID, ym, start, end); err != nil {
			return err
		}

		subs, err := q.ListSubscriptions(ctx, userID, true)
		if err != nil {
			return err
		}
		d.ActiveSubscriptions = len(subs)
		for _, sub := range subs {
			d.SubscriptionsPerMonth = d.SubscriptionsPerMonth.Add(sub.Frequency.MonthlyEquivalent(sub.Amount))
		}

		saved, target, err := q.GoalTotals(ctx, userID)
		if err != nil {
			return err
		}
		d.GoalsSaved = saved
		d.GoalsProgressPercent = core.Goal{SavedAmount: saved, TargetAmount: target}.ProgressPercent()

		d.RecentTransactions, err = q.ListCashFlows(ctx, storage.CashFlowFilter{UserID: userID, Limit: dashboardRecentLimit})
		return err
	})
	return d, err
}

func monthOverview(ctx context.Context, q *storage.Queries, userID core.UserID, ym core.YearMonth, start, end time.Time) (core.MonthOverview, error) {
	income, err := q.SumCashFlows(ctx, storage.CashFlowFilter{UserID: userID, Type: core.Income, Start: start, End: end})
	if err != nil {
		return core.MonthOverview{}, err
	}
	expense, err := q.SumCashFlows(ctx, storage.CashFlowFilter{UserID: userID, Type: core.Expense, Start: start, End: end})
	if err != nil {
		return core.MonthOverview{}, err
	}
	byCategory, err := q.ExpenseByCategory(ctx, userID, start, end)
	if err != nil {
		return core.MonthOverview{}, err
	}
	for i, ca := range byCategory {
		if ca.CategoryID == nil {
			byCategory[i].Name = core.CategoryUncategorized
			continue
		}
		b, err := q.GetBudget(ctx, userID, *ca.CategoryID, ym)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return core.MonthOverview{}, err
		}
		if err == nil {
			byCategory[i].Budget = b.Amount
		}
		byCategory[i].Percent = core.Percent(ca.Amount, byCategory[i].Budget)
	}

	net := income.Sub(expense)
	return core.MonthOverview{
		YearMonth:  ym.String(),
		Income:     income,
		Expense:    expense,
		Net:        net,
		SavingRate: core.Percent(net, income),
		ByCategory: byCategory,
	}, nil
}
