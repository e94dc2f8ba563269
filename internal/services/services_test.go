package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

var testNow = time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)

func newTestRepository(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// recordingPublisher keeps the ids it was asked to publish.
type recordingPublisher struct {
	mu  sync.Mutex
	ids []int64
}

func (p *recordingPublisher) PublishCashFlowRecorded(_ context.Context, id int64, _ core.UserID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return nil
}

func (p *recordingPublisher) published() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.ids...)
}

// provision creates the user's cash account and default categories and
// optionally funds the cash account.
func provision(t *testing.T, repo *storage.SQLiteRepository, userID core.UserID, funds int64) (*LedgerService, core.Account) {
	t.Helper()
	ledger := NewLedgerService(repo, nil, time.UTC)
	ledger.clock.now = fixed(testNow)

	cash, err := ledger.ProvisionUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ProvisionUser: %v", err)
	}
	if funds > 0 {
		if _, err := ledger.RecordIncome(context.Background(), userID, EntryInput{
			Amount:       core.Cents(funds),
			OccurredAt:   testNow.Add(-time.Hour),
			Description:  "Salary",
			CategoryName: core.CategoryIncome,
		}); err != nil {
			t.Fatalf("RecordIncome: %v", err)
		}
	}
	return ledger, cash
}

func balanceOf(t *testing.T, repo *storage.SQLiteRepository, userID core.UserID, accountID int64) core.Money {
	t.Helper()
	b, err := NewCalculator(repo.Queries(), time.UTC).AccountBalance(context.Background(), userID, accountID)
	if err != nil {
		t.Fatalf("AccountBalance: %v", err)
	}
	return b
}
