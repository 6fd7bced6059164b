package ledger

import (
	"github.com/shopspring/decimal"

	"brunance/internal/accounts"
	"brunance/internal/core"
)

// Balances folds every transaction in currency into per-account balances,
// keyed by canonical account id. References the registry does not know land
// in the accounts.UnknownID bucket. Accounts whose balance is zero are
// omitted. The fold is order independent.
func Balances(txs []core.Transaction, currency core.Currency, reg *accounts.Registry) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	add := func(id string, d decimal.Decimal) {
		key := reg.Key(id)
		out[key] = out[key].Add(d)
	}
	for _, tx := range txs {
		if tx.Currency != currency {
			continue
		}
		switch tx.Nature {
		case core.NatureIncome:
			add(tx.SourceAccountID, tx.Amount)
		case core.NatureExpense:
			// Installment purchases hit the account in full.
			add(tx.SourceAccountID, tx.Amount.Neg())
		case core.NatureTransfer:
			add(tx.SourceAccountID, tx.Amount.Neg())
			add(tx.DestinationAccountID, tx.Amount)
		}
	}
	for k, v := range out {
		if v.IsZero() {
			delete(out, k)
		}
	}
	return out
}

// Totals are the currency-level figures for a set of transactions.
type Totals struct {
	Currency  core.Currency   `json:"currency"`
	Income    decimal.Decimal `json:"income"`
	Expense   decimal.Decimal `json:"expense"`
	Transfers decimal.Decimal `json:"transfers"`
	Count     int             `json:"count"`
}

// Net is income minus expense. It always equals the sum of Balances for the
// same transactions.
func (t Totals) Net() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}

// CurrencyTotals sums full amounts per nature. It does not need the
// registry, so unknown accounts count like any other.
func CurrencyTotals(txs []core.Transaction, currency core.Currency) Totals {
	t := Totals{Currency: currency}
	for _, tx := range txs {
		if tx.Currency != currency {
			continue
		}
		t.Count++
		switch tx.Nature {
		case core.NatureIncome:
			t.Income = t.Income.Add(tx.Amount)
		case core.NatureExpense:
			t.Expense = t.Expense.Add(tx.Amount)
		case core.NatureTransfer:
			t.Transfers = t.Transfers.Add(tx.Amount)
		}
	}
	return t
}

// AccountBalance pairs an account with its balance for display.
type AccountBalance struct {
	Account accounts.Account `json:"account"`
	Balance decimal.Decimal  `json:"balance"`
}

// BalanceSheet orders a Balances result by catalog order, with the unknown
// bucket last.
func BalanceSheet(balances map[string]decimal.Decimal, reg *accounts.Registry) []AccountBalance {
	out := make([]AccountBalance, 0, len(balances))
	for _, a := range reg.All() {
		if b, ok := balances[a.ID]; ok {
			out = append(out, AccountBalance{Account: a, Balance: b})
		}
	}
	if b, ok := balances[accounts.UnknownID]; ok {
		out = append(out, AccountBalance{Account: accounts.Unknown, Balance: b})
	}
	return out
}

// Sum adds the balances of a sheet together.
func Sum(sheet []AccountBalance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range sheet {
		total = total.Add(b.Balance)
	}
	return total
}
