package ledger

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"brunance/internal/core"
)

// PayerTotals is what one member paid and earned in a month.
type PayerTotals struct {
	Paid   decimal.Decimal `json:"paid"`
	Earned decimal.Decimal `json:"earned"`
}

// Summary is the monthly overview for one currency.
type Summary struct {
	Period   string                      `json:"month"`
	Currency core.Currency               `json:"currency"`
	Income   decimal.Decimal             `json:"totalIncomes"`
	Expense  decimal.Decimal             `json:"totalExpenses"`
	Balance  decimal.Decimal             `json:"balance"`
	ByPayer  map[core.Member]PayerTotals `json:"byPayer"`
	Count    int                         `json:"count"`
}

// MonthSummary totals the transactions active in p. Installment purchases
// count only their monthly share; transfers are not income or expense.
func MonthSummary(txs []core.Transaction, p core.Period, currency core.Currency) Summary {
	s := Summary{
		Period:   p.String(),
		Currency: currency,
		ByPayer:  make(map[core.Member]PayerTotals, len(core.Members)),
	}
	for _, m := range core.Members {
		s.ByPayer[m] = PayerTotals{}
	}
	for _, tx := range FilterPeriod(txs, p) {
		if tx.Currency != currency {
			continue
		}
		s.Count++
		share := PeriodShare(tx)
		pt, known := s.ByPayer[tx.Payer]
		switch tx.Nature {
		case core.NatureIncome:
			s.Income = s.Income.Add(share)
			pt.Earned = pt.Earned.Add(share)
		case core.NatureExpense:
			s.Expense = s.Expense.Add(share)
			pt.Paid = pt.Paid.Add(share)
		}
		if known {
			s.ByPayer[tx.Payer] = pt
		}
	}
	s.Balance = s.Income.Sub(s.Expense)
	return s
}

// History returns txs newest first. Entries with the same date keep their
// relative order.
func History(txs []core.Transaction) []core.Transaction {
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	return out
}

// Day is a group of transactions sharing a calendar date.
type Day struct {
	Date         string             `json:"date"`
	Transactions []core.Transaction `json:"transactions"`
}

// GroupByDay groups a History result by calendar date in loc, preserving
// order. A nil loc uses each transaction's own location.
func GroupByDay(txs []core.Transaction, loc *time.Location) []Day {
	var out []Day
	for _, tx := range txs {
		t := tx.OccurredAt
		if loc != nil {
			t = t.In(loc)
		}
		key := t.Format(time.DateOnly)
		if n := len(out); n > 0 && out[n-1].Date == key {
			out[n-1].Transactions = append(out[n-1].Transactions, tx)
			continue
		}
		out = append(out, Day{Date: key, Transactions: []core.Transaction{tx}})
	}
	return out
}

// Pending returns the entries not yet confirmed by the remote, oldest first.
func Pending(txs []core.Transaction) []core.Transaction {
	var out []core.Transaction
	for _, tx := range txs {
		if !tx.Synced {
			out = append(out, tx)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		return cmp.Compare(a.OccurredAt.UnixNano(), b.OccurredAt.UnixNano())
	})
	return out
}
