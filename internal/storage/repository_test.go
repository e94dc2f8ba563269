package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetledger/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func mustAccount(t *testing.T, q *Queries, user core.UserID, name string, typ core.AccountType) core.Account {
	t.Helper()
	a, err := q.CreateAccount(context.Background(), user, name, typ, testNow)
	if err != nil {
		t.Fatalf("CreateAccount(%q): %v", name, err)
	}
	return a
}

func mustFlow(t *testing.T, q *Queries, user core.UserID, accountID int64, typ core.CashFlowType, cents int64, at time.Time) core.CashFlow {
	t.Helper()
	c, err := q.InsertCashFlow(context.Background(), core.CashFlow{
		UserID:     user,
		Type:       typ,
		Amount:     core.Cents(cents),
		OccurredAt: at,
		AccountID:  accountID,
	})
	if err != nil {
		t.Fatalf("InsertCashFlow: %v", err)
	}
	return c
}

func TestAccountBalance_DerivedFromEvents(t *testing.T) {
	repo := newTestRepository(t)
	q := repo.Queries()
	ctx := context.Background()

	a := mustAccount(t, q, 1, "Cash", core.AccountCash)
	b := mustAccount(t, q, 1, "Wallet", core.AccountCash)
	empty := mustAccount(t, q, 1, "Empty", core.AccountCash)

	// Same events, opposite insertion order.
	mustFlow(t, q, 1, a.ID, core.Income, 10000, testNow)
	mustFlow(t, q, 1, a.ID, core.Expense, 3000, testNow)
	mustFlow(t, q, 1, b.ID, core.Expense, 3000, testNow)
	mustFlow(t, q, 1, b.ID, core.Income, 10000, testNow)

	for _, id := range []int64{a.ID, b.ID} {
		got, err := q.AccountBalance(ctx, 1, id)
		if err != nil {
			t.Fatalf("AccountBalance: %v", err)
		}
		if got.Cents != 7000 {
			t.Errorf("balance of account %d = %d, want 7000", id, got.Cents)
		}
	}

	got, err := q.AccountBalance(ctx, 1, empty.ID)
	if err != nil {
		t.Fatalf("AccountBalance: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("empty account balance = %d, want 0", got.Cents)
	}

	total, err := q.TotalBalance(ctx, 1)
	if err != nil {
		t.Fatalf("TotalBalance: %v", err)
	}
	if total.Cents != 14000 {
		t.Errorf("total = %d, want 14000", total.Cents)
	}

	balances, err := q.AccountBalances(ctx, 1)
	if err != nil {
		t.Fatalf("AccountBalances: %v", err)
	}
	if len(balances) != 3 {
		t.Fatalf("got %d balances, want 3", len(balances))
	}
	if balances[2].Balance.Cents != 0 {
		t.Errorf("empty account in AccountBalances = %d, want 0", balances[2].Balance.Cents)
	}
}

func TestCreateAccount_DuplicateName(t *testing.T) {
	repo := newTestRepository(t)
	q := repo.Queries()

	mustAccount(t, q, 1, "Holiday", core.AccountGoal)
	_, err := q.CreateAccount(context.Background(), 1, "  holiday ", core.AccountCash, testNow)
	if !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	// Another user may reuse the name.
	mustAccount(t, q, 2, "Holiday", core.AccountGoal)
}

func TestFirstCashAccount(t *testing.T) {
	repo := newTestRepository(t)
	q := repo.Queries()
	ctx := context.Background()

	if _, err := q.FirstCashAccount(ctx, 1); !errors.Is(err, core.ErrNoCashAccount) {
		t.Fatalf("expected ErrNoCashAccount, got %v", err)
	}

	mustAccount(t, q, 1, "Trip", core.AccountGoal)
	first := mustAccount(t, q, 1, "Cash", core.AccountCash)
	mustAccount(t, q, 1, "Second", core.AccountCash)

	got, err := q.FirstCashAccount(ctx, 1)
	if err != nil {
		t.Fatalf("FirstCashAccount: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("FirstCashAccount = %d, want %d", got.ID, first.ID)
	}
}

func TestSumCashFlows_InclusiveMonthBounds(t *testing.T) {
	repo := newTestRepository(t)
	q := repo.Queries()
	ctx := context.Background()

	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	start, end := core.YearMonth{Year: 2025, Month: time.February}.Range(loc)

	a := mustAccount(t, q, 1, "Cash", core.AccountCash)
	mustFlow(t, q, 1, a.ID, core.Expense, 100, start)
	mustFlow(t, q, 1, a.ID, core.Expense, 200, end)
	mustFlow(t, q, 1, a.ID, core.Expense, 400, end.Add(time.Nanosecond))
	mustFlow(t, q, 1, a.ID, core.Expense, 800, start.Add(-time.Nanosecond))
	mustFlow(t, q, 1, a.ID, core.Income, 1600, start.Add(time.Hour))

	got, err := q.SumCashFlows(ctx, CashFlowFilter{UserID: 1, Type: core.Expense, Start: start, End: end})
	if err != nil {
		t.Fatalf("SumCashFlows: %v", err)
	}
	if got.Cents != 300 {
		t.Errorf("expense in February = %d, want 300", got.Cents)
	}

	n, err := q.CountCashFlows(ctx, CashFlowFilter{UserID: 1, Start: start, End: end})
	if err != nil {
		t.Fatalf("CountCashFlows: %v", err)
	}
	if n != 3 {
		t.Errorf("count in February = %d, want 3", n)
	}
}

func TestInsertCategoryIfAbsent_AndPromote(t *testing.T) {
	repo := newTestRepository(t)
	q := repo.Queries()
	ctx := context.Background()

	inserted, err := q.InsertCategoryIfAbsent(ctx, 1, "Subscriptions", false, testNow)
	if err != nil || !inserted {
		t.Fatalf("first insert = %v, %v; want true, nil", inserted, err)
	}
	inserted, err = q.InsertCategoryIfAbsent(ctx, 1, " subscriptions ", true, testNow)
	if err != nil || inserted {
		t.Fatalf("second insert = %v, %v; want false, nil", inserted, err)
	}

	c, found, err := q.FindCategoryByName(ctx, 1, "SUBSCRIPTIONS")
	if err != nil || !found {
		t.Fatalf("FindCategoryByName = %v, %v", found, err)
	}
	if c.IsSystem {
		t.Fatal("category should not be system before promotion")
	}

	promoted, err := q.PromoteCategory(ctx, c.ID)
	if err != nil || !promoted {
		t.Fatalf("PromoteCategory = %v, %v; want true, nil", promoted, err)
	}
	promoted, err = q.PromoteCategory(ctx, c.ID)
	if err != nil || promoted {
		t.Fatalf("second PromoteCategory = %v, %v; want false, nil", promoted, err)
	}

	if _, found, _ := q.FindCategoryByName(ctx, 2, "Subscriptions"); found {
		t.Error("categories must be scoped to their owner")
	}
}

func TestAdvanceSubscriptionCursor_VersionGuard(t *testing.T) {
	repo := newTestRepository(t)
	q := repo.Queries()
	ctx := context.Background()

	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	sub, err := q.CreateSubscription(ctx, core.Subscription{
		UserID:     1,
		Merchant:   "Netflix",
		Amount:     core.Cents(1599),
		Frequency:  core.Monthly,
		StartDate:  start,
		IsActive:   true,
		NextPostAt: start,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	})
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if sub.Version != 1 {
		t.Fatalf("version = %d, want 1", sub.Version)
	}

	due, err := q.ListDueSubscriptions(ctx, testNow)
	if err != nil {
		t.Fatalf("ListDueSubscriptions: %v", err)
	}
	if len(due) != 1 || due[0].ID != sub.ID {
		t.Fatalf("due = %+v, want the one subscription", due)
	}

	next := time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC)
	ok, err := q.AdvanceSubscriptionCursor(ctx, sub.ID, next, sub.Version, testNow)
	if err != nil || !ok {
		t.Fatalf("advance = %v, %v; want true, nil", ok, err)
	}
	ok, err = q.AdvanceSubscriptionCursor(ctx, sub.ID, next.AddDate(0, 1, 0), sub.Version, testNow)
	if err != nil || ok {
		t.Fatalf("advance with stale version = %v, %v; want false, nil", ok, err)
	}

	got, err := q.GetSubscription(ctx, 1, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if !got.NextPostAt.Equal(next) || got.Version != 2 {
		t.Errorf("cursor = %v version %d, want %v version 2", got.NextPostAt, got.Version, next)
	}

	due, err = q.ListDueSubscriptions(ctx, testNow)
	if err != nil {
		t.Fatalf("ListDueSubscriptions: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("nothing should be due after advancing, got %d", len(due))
	}
}

func TestUpsertBudget(t *testing.T) {
	repo := newTestRepository(t)
	q := repo.Queries()
	ctx := context.Background()

	cat, err := q.CreateCategory(ctx, 1, "Food", testNow)
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	ym := core.YearMonth{Year: 2025, Month: time.March}

	if _, err := q.GetBudget(ctx, 1, cat.ID, ym); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before upsert, got %v", err)
	}

	if _, err := q.UpsertBudget(ctx, core.CategoryBudget{UserID: 1, CategoryID: cat.ID, YearMonth: ym, Amount: core.Cents(20000)}); err != nil {
		t.Fatalf("UpsertBudget: %v", err)
	}
	b, err := q.UpsertBudget(ctx, core.CategoryBudget{UserID: 1, CategoryID: cat.ID, YearMonth: ym, Amount: core.Cents(25000)})
	if err != nil {
		t.Fatalf("second UpsertBudget: %v", err)
	}
	if b.Amount.Cents != 25000 || b.YearMonth != ym {
		t.Errorf("budget = %+v, want 250.00 for %s", b, ym)
	}

	all, err := q.ListBudgets(ctx, 1, &cat.ID, nil)
	if err != nil {
		t.Fatalf("ListBudgets: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("upsert should keep one row per month, got %d", len(all))
	}

	deleted, err := q.DeleteBudget(ctx, 1, cat.ID, ym)
	if err != nil || !deleted {
		t.Fatalf("DeleteBudget = %v, %v", deleted, err)
	}
	deleted, err = q.DeleteBudget(ctx, 1, cat.ID, ym)
	if err != nil || deleted {
		t.Fatalf("second DeleteBudget = %v, %v; want false", deleted, err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	a := mustAccount(t, repo.Queries(), 1, "Cash", core.AccountCash)

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(q *Queries) error {
		mustFlow(t, q, 1, a.ID, core.Income, 500, testNow)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}

	n, err := repo.Queries().CountCashFlows(ctx, CashFlowFilter{UserID: 1})
	if err != nil {
		t.Fatalf("CountCashFlows: %v", err)
	}
	if n != 0 {
		t.Errorf("rolled back insert is visible: %d rows", n)
	}
}

func TestExportBookkeeping(t *testing.T) {
	repo := newTestRepository(t)
	q := repo.Queries()
	ctx := context.Background()

	a := mustAccount(t, q, 1, "Cash", core.AccountCash)
	first := mustFlow(t, q, 1, a.ID, core.Income, 100, testNow)
	second := mustFlow(t, q, 1, a.ID, core.Expense, 50, testNow)

	pending, err := q.PendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExport: %v", err)
	}
	if len(pending) != 2 || pending[0] != first.ID {
		t.Fatalf("pending = %v, want [%d %d]", pending, first.ID, second.ID)
	}

	if err := q.MarkExported(ctx, first.ID, testNow); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}
	exported, err := q.IsExported(ctx, first.ID)
	if err != nil || !exported {
		t.Fatalf("IsExported = %v, %v", exported, err)
	}

	pending, err = q.PendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExport: %v", err)
	}
	if len(pending) != 1 || pending[0] != second.ID {
		t.Errorf("pending after mark = %v, want [%d]", pending, second.ID)
	}
}

func TestReassignCategory(t *testing.T) {
	repo := newTestRepository(t)
	q := repo.Queries()
	ctx := context.Background()

	a := mustAccount(t, q, 1, "Cash", core.AccountCash)
	food, _ := q.CreateCategory(ctx, 1, "Food", testNow)
	dining, _ := q.CreateCategory(ctx, 1, "Dining", testNow)
	groceries, _ := q.CreateCategory(ctx, 1, "Groceries", testNow)

	for _, id := range []int64{food.ID, dining.ID, dining.ID} {
		catID := id
		if _, err := q.InsertCashFlow(ctx, core.CashFlow{
			UserID: 1, Type: core.Expense, Amount: core.Cents(100), OccurredAt: testNow,
			AccountID: a.ID, CategoryID: &catID,
		}); err != nil {
			t.Fatalf("InsertCashFlow: %v", err)
		}
	}

	moved, err := q.ReassignCategory(ctx, 1, []int64{food.ID, dining.ID}, groceries.ID)
	if err != nil {
		t.Fatalf("ReassignCategory: %v", err)
	}
	if moved != 3 {
		t.Errorf("moved = %d, want 3", moved)
	}
	n, err := q.CountCashFlows(ctx, CashFlowFilter{UserID: 1, CategoryID: &groceries.ID})
	if err != nil || n != 3 {
		t.Errorf("flows under target = %d, %v; want 3", n, err)
	}
}
