package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetledger/internal/core"
)

func TestBudgetSummary_OverspendGoesNegative(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	ledger, _ := provision(t, repo, 1, 0)
	budgets := NewBudgetService(repo, time.UTC)
	budgets.clock.now = fixed(testNow)

	groceries, _, _ := repo.Queries().FindCategoryByName(ctx, 1, "Groceries")
	name := "Weekly shop"
	if _, err := budgets.Set(ctx, 1, groceries.ID, "", core.Cents(20000), &name); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, cents := range []int64{12000, 13000} {
		if _, err := ledger.RecordExpense(ctx, 1, EntryInput{
			Amount:     core.Cents(cents),
			OccurredAt: time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC),
			CategoryID: &groceries.ID,
		}); err != nil {
			t.Fatalf("RecordExpense: %v", err)
		}
	}
	// Income in the category does not count as spend.
	if _, err := ledger.RecordIncome(ctx, 1, EntryInput{
		Amount:     core.Cents(4000),
		OccurredAt: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
		CategoryID: &groceries.ID,
	}); err != nil {
		t.Fatalf("RecordIncome: %v", err)
	}

	sum, err := budgets.Summary(ctx, 1, groceries.ID, "2025-03")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Spent.Cents != 25000 || sum.Remaining.Cents != -5000 {
		t.Errorf("spent %s remaining %s, want 250.00 / -50.00", sum.Spent, sum.Remaining)
	}
	if sum.Percent.StringFixed(2) != "125.00" {
		t.Errorf("percent = %s, want 125.00", sum.Percent.StringFixed(2))
	}
	if sum.CustomName == nil || *sum.CustomName != name {
		t.Errorf("custom name = %v", sum.CustomName)
	}

	month, err := budgets.Month(ctx, 1, "2025-03")
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if len(month) != 1 || month[0].CategoryID != groceries.ID {
		t.Errorf("unexpected month summaries %+v", month)
	}
}

func TestBudgetService_SetReplacesAndDeletes(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	provision(t, repo, 1, 0)
	budgets := NewBudgetService(repo, time.UTC)
	food, _, _ := repo.Queries().FindCategoryByName(ctx, 1, "Food")

	first, err := budgets.Set(ctx, 1, food.ID, "2025-05", core.Cents(1000), nil)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	second, err := budgets.Set(ctx, 1, food.ID, "2025-05", core.Cents(2500), nil)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if first.ID != second.ID || second.Amount.Cents != 2500 {
		t.Errorf("upsert created a new row or kept the amount: %+v then %+v", first, second)
	}

	if _, err := budgets.Set(ctx, 1, food.ID, "2025-05", core.Cents(0), nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("zero budget: err = %v", err)
	}
	if _, err := budgets.Set(ctx, 1, food.ID, "2025-13", core.Cents(100), nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad month: err = %v", err)
	}
	if _, err := budgets.Set(ctx, 1, 9999, "2025-05", core.Cents(100), nil); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown category: err = %v", err)
	}

	deleted, err := budgets.Delete(ctx, 1, food.ID, "2025-05")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	deleted, err = budgets.Delete(ctx, 1, food.ID, "2025-05")
	if err != nil || deleted {
		t.Errorf("second Delete = %v, %v", deleted, err)
	}
}
