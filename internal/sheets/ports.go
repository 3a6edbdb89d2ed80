package sheets

import (
	"context"

	"potshare/internal/core"
)

// Header is the first row of every exported pot tab.
var Header = []any{"Participant", "Contributed", "Owed", "Balance"}

// BalanceExporter is the outbound port for publishing a pot's balances.
type BalanceExporter interface {
	// ExportPot replaces the pot's exported table with balances.
	ExportPot(ctx context.Context, pot core.Pot, balances []core.Balance) error
}

// TabName is the sheet tab a pot is exported to.
func TabName(pot core.Pot) string {
	return "Pot " + pot.InviteCode
}

// Rows renders balances as a table: header, one row per participant, then
// the pot totals. Amounts are two-decimal strings.
func Rows(balances []core.Balance) [][]any {
	rows := make([][]any, 0, len(balances)+2)
	rows = append(rows, Header)
	for _, b := range balances {
		rows = append(rows, []any{b.Name, b.Contributed.String(), b.Owed.String(), b.Balance.String()})
	}
	s := core.Summarize(balances)
	rows = append(rows, []any{"Total", s.TotalContributed.String(), s.TotalOwed.String(), s.NetBalance.String()})
	return rows
}
