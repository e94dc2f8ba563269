package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ports "budgetledger/internal/sheets"
)

// Column order of the ledger sheet: A date, B time, C type, D description,
// E amount, F account, G category, H ledger id.
func rowValues(row ports.LedgerRow, loc *time.Location) []any {
	at := row.OccurredAt.In(loc)
	return []any{
		at.Format("2006-01-02"),
		at.Format("15:04"),
		string(row.Type),
		row.Description,
		row.Amount.String(),
		row.Account,
		row.Category,
		row.ID,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
