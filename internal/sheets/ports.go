package sheets

import (
	"context"
	"time"

	"budgetledger/internal/core"
)

// LedgerRow is one ledger event as written to an external spreadsheet.
type LedgerRow struct {
	ID          int64
	UserID      core.UserID
	OccurredAt  time.Time
	Type        core.CashFlowType
	Amount      core.Money
	Description string
	Account     string
	Category    string
}

// Ports for outbound adapters.
type (
	// LedgerExporter appends ledger rows to an external sheet and returns a
	// reference to the written row.
	LedgerExporter interface {
		AppendCashFlow(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}
)
