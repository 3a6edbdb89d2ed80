// Package memory keeps exported balance tables in process, for local
// development and tests when no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"potshare/internal/core"
	"potshare/internal/sheets"
)

// Export is the last table written for one pot.
type Export struct {
	Tab  string
	Rows [][]any
}

type Store struct {
	mu      sync.Mutex
	exports map[string]Export
	writes  int
}

var _ sheets.BalanceExporter = (*Store)(nil)

func New() *Store {
	return &Store{exports: make(map[string]Export)}
}

// ExportPot replaces the stored table for the pot.
func (s *Store) ExportPot(ctx context.Context, pot core.Pot, balances []core.Balance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[pot.ID] = Export{Tab: sheets.TabName(pot), Rows: sheets.Rows(balances)}
	s.writes++
	return nil
}

// Get returns the last export of a pot.
func (s *Store) Get(potID string) (Export, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[potID]
	return e, ok
}

// Writes counts ExportPot calls that succeeded.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
