package memory

import (
	"context"
	"testing"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/sheets"
)

var _ sheets.LedgerExporter = (*Store)(nil)

func TestMemoryStoreAppend(t *testing.T) {
	s := New()
	row := sheets.LedgerRow{
		ID:          7,
		UserID:      1,
		OccurredAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Type:        core.Expense,
		Amount:      core.Cents(1599),
		Description: "Subscription: Netflix",
	}

	ref, err := s.AppendCashFlow(context.Background(), row)
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	// Same id again is not duplicated.
	ref, err = s.AppendCashFlow(context.Background(), row)
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected re-append: ref=%q err=%v", ref, err)
	}
	if got := len(s.Rows()); got != 1 {
		t.Fatalf("expected 1 row, got %d", got)
	}
}

func TestMemoryStoreFailNext(t *testing.T) {
	s := New()
	s.FailNext(1)

	if _, err := s.AppendCashFlow(context.Background(), sheets.LedgerRow{ID: 1}); err == nil {
		t.Fatal("expected injected failure")
	}
	if _, err := s.AppendCashFlow(context.Background(), sheets.LedgerRow{ID: 1}); err != nil {
		t.Fatalf("second append should succeed: %v", err)
	}
}
