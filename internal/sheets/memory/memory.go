// Package memory is an in-process LedgerExporter for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetledger/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	rows  []sheets.LedgerRow
	seen  map[int64]string
	fails int
}

func New() *Store {
	return &Store{seen: map[int64]string{}}
}

// FailNext makes the next n appends fail, to exercise retry paths.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = n
}

// AppendCashFlow stores the row and returns a synthetic reference. A row
// already stored under the same id is not stored twice.
func (s *Store) AppendCashFlow(_ context.Context, row sheets.LedgerRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return "", fmt.Errorf("memory exporter: injected failure for row %d", row.ID)
	}
	if ref, ok := s.seen[row.ID]; ok {
		return ref, nil
	}
	s.rows = append(s.rows, row)
	ref := fmt.Sprintf("mem:%d", len(s.rows))
	s.seen[row.ID] = ref
	return ref, nil
}

// Rows returns a copy of the stored rows in append order.
func (s *Store) Rows() []sheets.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.LedgerRow(nil), s.rows...)
}
