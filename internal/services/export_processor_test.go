package services

import (
	"context"
	"testing"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/sheets/memory"
)

func TestExportProcessor_ExportsOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	ledger, _ := provision(t, repo, 1, 0)

	flow, err := ledger.RecordExpense(ctx, 1, EntryInput{
		Amount:       core.Cents(4250),
		OccurredAt:   testNow,
		Description:  "Weekly shop",
		CategoryName: "Groceries",
	})
	if err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}

	store := memory.New()
	p := NewExportProcessor(repo, store, time.UTC, ExportProcessorConfig{})

	ok, err := p.ExportCashFlow(ctx, flow.ID)
	if err != nil || !ok {
		t.Fatalf("ExportCashFlow = %v, %v", ok, err)
	}
	ok, err = p.ExportCashFlow(ctx, flow.ID)
	if err != nil || ok {
		t.Errorf("second ExportCashFlow = %v, %v; want skip", ok, err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.ID != flow.ID || row.Account != core.DefaultCashAccountName || row.Category != "Groceries" ||
		row.Type != core.Expense || row.Amount.Cents != 4250 || row.Description != "Weekly shop" {
		t.Errorf("unexpected row %+v", row)
	}
}

func TestExportProcessor_ExportPendingStopsOnFailure(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	ledger, _ := provision(t, repo, 1, 0)

	for i := 0; i < 3; i++ {
		if _, err := ledger.RecordIncome(ctx, 1, EntryInput{Amount: core.Cents(100)}); err != nil {
			t.Fatalf("RecordIncome: %v", err)
		}
	}

	store := memory.New()
	store.FailNext(1)
	p := NewExportProcessor(repo, store, time.UTC, ExportProcessorConfig{BatchSize: 10})

	n, err := p.ExportPending(ctx, 0)
	if err == nil || n != 0 {
		t.Fatalf("ExportPending = %d, %v; want failure on first row", n, err)
	}

	n, err = p.ExportPending(ctx, 0)
	if err != nil || n != 3 {
		t.Fatalf("ExportPending = %d, %v; want 3", n, err)
	}
	for i, row := range store.Rows() {
		if row.Category != core.CategoryUncategorized {
			t.Errorf("row %d category = %q", i, row.Category)
		}
	}

	n, err = p.ExportPending(ctx, 0)
	if err != nil || n != 0 {
		t.Errorf("nothing left to export, got %d, %v", n, err)
	}
}

func TestExportProcessor_Lifecycle(t *testing.T) {
	repo := newTestRepository(t)
	p := NewExportProcessor(repo, memory.New(), time.UTC, ExportProcessorConfig{PollInterval: time.Hour})

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.IsRunning() {
		t.Error("processor should be running")
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should be stopped")
	}
}
