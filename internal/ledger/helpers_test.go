package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"brunance/internal/accounts"
	"brunance/internal/core"
)

var testSeq int

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nextID() string {
	testSeq++
	return fmt.Sprintf("tx-%d", testSeq)
}

func income(payer core.Member, account, amount string, at time.Time) core.Transaction {
	return core.Transaction{
		ID: nextID(), Amount: amt(amount), Currency: core.CurrencyARS, OccurredAt: at,
		Payer: payer, Beneficiary: core.Beneficiary(payer), Nature: core.NatureIncome, SourceAccountID: account,
	}
}

func expense(payer core.Member, b core.Beneficiary, account, amount string, at time.Time) core.Transaction {
	return core.Transaction{
		ID: nextID(), Amount: amt(amount), Currency: core.CurrencyARS, OccurredAt: at,
		Payer: payer, Beneficiary: b, Nature: core.NatureExpense, SourceAccountID: account,
	}
}

func transfer(payer core.Member, from, to, amount string, at time.Time) core.Transaction {
	return core.Transaction{
		ID: nextID(), Amount: amt(amount), Currency: core.CurrencyARS, OccurredAt: at,
		Payer: payer, Nature: core.NatureTransfer, SourceAccountID: from, DestinationAccountID: to,
	}
}

func settlement(payer core.Member, from, to, amount string, at time.Time) core.Transaction {
	tx := transfer(payer, from, to, amount, at)
	tx.Beneficiary = core.BeneficiaryShared
	tx.IsSettlement = true
	return tx
}

func assertDecimal(t *testing.T, what string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s: got %s, want %s", what, got, want)
	}
}

func registry() *accounts.Registry {
	return accounts.Default()
}
