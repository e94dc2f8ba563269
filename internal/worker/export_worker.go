package worker

import (
	"context"
	"fmt"
	"log/slog"

	"budgetledger/internal/amqp"
)

// CashFlowExporter is the part of services.ExportProcessor the worker uses.
type CashFlowExporter interface {
	ExportCashFlow(ctx context.Context, id int64) (bool, error)
	ExportPending(ctx context.Context, limit int) (int, error)
}

// ExportWorker turns cashflow.recorded messages into sheet rows. Messages
// only speed things up: ProcessPending finds anything they missed.
type ExportWorker struct {
	exporter  CashFlowExporter
	batchSize int
}

func NewExportWorker(exporter CashFlowExporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ExportWorker{exporter: exporter, batchSize: batchSize}
}

// HandleCashFlowRecorded exports the event named by one message.
func (w *ExportWorker) HandleCashFlowRecorded(ctx context.Context, msg *amqp.CashFlowRecordedMessage) error {
	exported, err := w.exporter.ExportCashFlow(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("export cash flow %d: %w", msg.ID, err)
	}
	if !exported {
		slog.DebugContext(ctx, "Message for already exported cash flow", "id", msg.ID, "user_id", msg.UserID)
	}
	return nil
}

// ProcessPending exports one batch of events that have no row yet.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	n, err := w.exporter.ExportPending(ctx, w.batchSize)
	if n > 0 {
		slog.InfoContext(ctx, "Exported pending cash flows", "count", n)
	}
	if err != nil {
		return fmt.Errorf("export pending: %w", err)
	}
	return nil
}

// StartupExportCheck drains a larger backlog left while the worker was down.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	n, err := w.exporter.ExportPending(ctx, w.batchSize*5)
	if err != nil {
		slog.ErrorContext(ctx, "Startup export incomplete", "exported", n, "error", err)
		return fmt.Errorf("startup export: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "No pending cash flows found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup export completed", "exported", n)
	return nil
}
