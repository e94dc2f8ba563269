package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/sheets"
	"budgetledger/internal/storage"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often to check for unexported events (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of events to export per poll cycle (default: 50)
	BatchSize int
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    50,
	}
}

// ExportProcessor copies committed cash flows to an external ledger sheet.
// Export state lives next to the event (exported_at), so a message that
// arrives twice or an event missed by the broker is exported exactly once.
type ExportProcessor struct {
	repo     *storage.SQLiteRepository
	exporter sheets.LedgerExporter
	config   ExportProcessorConfig
	clock    clock

	// Serializes exports so a poll and a message never race on one id.
	exportMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(repo *storage.SQLiteRepository, exporter sheets.LedgerExporter, loc *time.Location, config ExportProcessorConfig) *ExportProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultExportProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultExportProcessorConfig().BatchSize
	}
	return &ExportProcessor{
		repo:     repo,
		exporter: exporter,
		config:   config,
		clock:    newClock(loc),
	}
}

// ExportCashFlow exports one event. It reports false when the event had
// already been exported.
func (p *ExportProcessor) ExportCashFlow(ctx context.Context, id int64) (bool, error) {
	p.exportMu.Lock()
	defer p.exportMu.Unlock()

	var (
		row      sheets.LedgerRow
		exported bool
	)
	err := p.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		var err error
		if exported, err = q.IsExported(ctx, id); err != nil || exported {
			return err
		}
		row, err = ledgerRow(ctx, q, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("load cash flow %d: %w", id, err)
	}
	if exported {
		slog.DebugContext(ctx, "Cash flow already exported, skipping", "id", id)
		return false, nil
	}

	ref, err := p.exporter.AppendCashFlow(ctx, row)
	if err != nil {
		return false, fmt.Errorf("append cash flow %d: %w", id, err)
	}

	if err := p.repo.Queries().MarkExported(ctx, id, p.clock.Now()); err != nil {
		// The row is in the sheet; a retry would duplicate it.
		slog.ErrorContext(ctx, "Failed to mark cash flow as exported",
			"id", id,
			"sheets_ref", ref,
			"error", err)
		return true, err
	}

	slog.InfoContext(ctx, "Exported cash flow",
		"id", id,
		"user_id", row.UserID,
		"sheets_ref", ref)
	return true, nil
}

// ledgerRow resolves the account and category names of one event.
func ledgerRow(ctx context.Context, q *storage.Queries, id int64) (sheets.LedgerRow, error) {
	c, err := q.GetCashFlow(ctx, id)
	if err != nil {
		return sheets.LedgerRow{}, err
	}
	acct, err := q.GetAccount(ctx, c.UserID, c.AccountID)
	if err != nil {
		return sheets.LedgerRow{}, err
	}
	category := core.CategoryUncategorized
	if c.CategoryID != nil {
		cat, err := q.GetCategory(ctx, c.UserID, *c.CategoryID)
		switch {
		case err == nil:
			category = cat.Name
		case !errors.Is(err, core.ErrNotFound):
			return sheets.LedgerRow{}, err
		}
	}
	return sheets.LedgerRow{
		ID:          c.ID,
		UserID:      c.UserID,
		OccurredAt:  c.OccurredAt,
		Type:        c.Type,
		Amount:      c.Amount,
		Description: c.Description,
		Account:     acct.Name,
		Category:    category,
	}, nil
}

// ExportPending exports up to limit unexported events, oldest first, and
// returns how many were written. It stops at the first failure so events
// keep their order in the sheet.
func (p *ExportProcessor) ExportPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = p.config.BatchSize
	}
	ids, err := p.repo.Queries().PendingExport(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending exports: %w", err)
	}

	written := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		ok, err := p.ExportCashFlow(ctx, id)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// Start begins the polling loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *ExportProcessor) processBatch(ctx context.Context) {
	n, err := p.ExportPending(ctx, p.config.BatchSize)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "Export batch failed", "exported", n, "error", err)
		return
	}
	if n > 0 {
		slog.DebugContext(ctx, "Export batch done", "exported", n)
	}
}
