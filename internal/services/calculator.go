package services

import (
	"context"
	"errors"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

// Calculator derives balances and aggregates from the ledger. It holds no
// state of its own: bind it to a read snapshot and every figure it returns
// agrees with the others.
type Calculator struct {
	q   *storage.Queries
	loc *time.Location
}

func NewCalculator(q *storage.Queries, loc *time.Location) Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return Calculator{q: q, loc: loc}
}

// AccountBalance is INCOME minus EXPENSE over the account's events. The
// account must belong to userID.
func (c Calculator) AccountBalance(ctx context.Context, userID core.UserID, accountID int64) (core.Money, error) {
	if _, err := c.q.GetAccount(ctx, userID, accountID); err != nil {
		return core.Money{}, err
	}
	return c.q.AccountBalance(ctx, userID, accountID)
}

func (c Calculator) TotalBalance(ctx context.Context, userID core.UserID) (core.Money, error) {
	return c.q.TotalBalance(ctx, userID)
}

// CategorySpend totals the category's events of typ within [start, end].
func (c Calculator) CategorySpend(ctx context.Context, userID core.UserID, categoryID int64, start, end time.Time, typ core.CashFlowType) (core.Money, error) {
	return c.q.SumCashFlows(ctx, storage.CashFlowFilter{
		UserID:     userID,
		CategoryID: &categoryID,
		Type:       typ,
		Start:      start,
		End:        end,
	})
}

// BudgetSummary compares the month's expense in the category with its
// budget. A month without a budget has a zero budget.
func (c Calculator) BudgetSummary(ctx context.Context, userID core.UserID, categoryID int64, ym core.YearMonth) (core.BudgetSummary, error) {
	start, end := ym.Range(c.loc)
	spent, err := c.CategorySpend(ctx, userID, categoryID, start, end, core.Expense)
	if err != nil {
		return core.BudgetSummary{}, err
	}

	var budget core.Money
	var customName *string
	b, err := c.q.GetBudget(ctx, userID, categoryID, ym)
	switch {
	case err == nil:
		budget = b.Amount
		customName = b.CustomName
	case errors.Is(err, core.ErrNotFound):
	default:
		return core.BudgetSummary{}, err
	}

	summary := core.NewBudgetSummary(categoryID, ym, budget, spent)
	summary.CustomName = customName
	return summary, nil
}
