package ledger

import (
	"github.com/shopspring/decimal"

	"brunance/internal/core"
)

// InstallmentIndex returns how many calendar months p is after the month tx
// occurred in: 0 for the origin month, negative before it.
func InstallmentIndex(tx core.Transaction, p core.Period) int {
	return p.MonthsSince(tx.OccurredAt)
}

// ActiveIn reports whether tx is attributed to p. A plain transaction is
// active only in its own month; an installment purchase of N months is
// active in N consecutive months starting at its own.
func ActiveIn(tx core.Transaction, p core.Period) bool {
	k := InstallmentIndex(tx, p)
	return k >= 0 && k < tx.InstallmentCount()
}

// FilterPeriod returns the transactions active in p, preserving order.
func FilterPeriod(txs []core.Transaction, p core.Period) []core.Transaction {
	var out []core.Transaction
	for _, tx := range txs {
		if ActiveIn(tx, p) {
			out = append(out, tx)
		}
	}
	return out
}

// PeriodShare is the part of tx attributed to each active month.
func PeriodShare(tx core.Transaction) decimal.Decimal {
	return core.Share(tx.Amount, tx.InstallmentCount())
}
