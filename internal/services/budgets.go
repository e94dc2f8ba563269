package services

import (
	"context"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

// BudgetService sets monthly category budgets and reports against them.
type BudgetService struct {
	repo  *storage.SQLiteRepository
	clock clock
}

func NewBudgetService(repo *storage.SQLiteRepository, loc *time.Location) *BudgetService {
	return &BudgetService{repo: repo, clock: newClock(loc)}
}

// Set creates or replaces the category's budget for the month.
func (s *BudgetService) Set(ctx context.Context, userID core.UserID, categoryID int64, month string, amount core.Money, customName *string) (core.CategoryBudget, error) {
	if !amount.IsPositive() {
		return core.CategoryBudget{}, core.ErrInvalidAmount
	}
	ym, err := core.ParseYearMonth(month, s.clock.Now())
	if err != nil {
		return core.CategoryBudget{}, err
	}
	var out core.CategoryBudget
	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetCategory(ctx, userID, categoryID); err != nil {
			return err
		}
		var err error
		out, err = q.UpsertBudget(ctx, core.CategoryBudget{
			UserID:     userID,
			CategoryID: categoryID,
			YearMonth:  ym,
			Amount:     amount,
			CustomName: customName,
		})
		return err
	})
	return out, err
}

// Delete reports whether a budget existed for the month.
func (s *BudgetService) Delete(ctx context.Context, userID core.UserID, categoryID int64, month string) (bool, error) {
	ym, err := core.ParseYearMonth(month, s.clock.Now())
	if err != nil {
		return false, err
	}
	return s.repo.Queries().DeleteBudget(ctx, userID, categoryID, ym)
}

// Summary compares the month's spend in the category with its budget.
func (s *BudgetService) Summary(ctx context.Context, userID core.UserID, categoryID int64, month string) (core.BudgetSummary, error) {
	ym, err := core.ParseYearMonth(month, s.clock.Now())
	if err != nil {
		return core.BudgetSummary{}, err
	}
	var out core.BudgetSummary
	err = s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		if _, err := q.GetCategory(ctx, userID, categoryID); err != nil {
			return err
		}
		var err error
		out, err = NewCalculator(q, s.clock.loc).BudgetSummary(ctx, userID, categoryID, ym)
		return err
	})
	return out, err
}

// Month summarizes every budget set for the month.
func (s *BudgetService) Month(ctx context.Context, userID core.UserID, month string) ([]core.BudgetSummary, error) {
	ym, err := core.ParseYearMonth(month, s.clock.Now())
	if err != nil {
		return nil, err
	}
	var out []core.BudgetSummary
	err = s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		budgets, err := q.ListBudgets(ctx, userID, nil, &ym)
		if err != nil {
			return err
		}
		calc := NewCalculator(q, s.clock.loc)
		for _, b := range budgets {
			summary, err := calc.BudgetSummary(ctx, userID, b.CategoryID, ym)
			if err != nil {
				return err
			}
			out = append(out, summary)
		}
		return nil
	})
	return out, err
}
