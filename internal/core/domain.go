package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MemberFran Member = "Fran"
	MemberCar  Member = "Car"
	// OwnerBoth is only valid as an account owner.
	OwnerBoth Member = "Both"

	BeneficiaryFran   Beneficiary = "Fran"
	BeneficiaryCar    Beneficiary = "Car"
	BeneficiaryShared Beneficiary = "Familiar"

	NatureExpense  Nature = "Gasto"
	NatureIncome   Nature = "Ingreso"
	NatureTransfer Nature = "Transferencia"

	CurrencyARS Currency = "ARS"
	CurrencyUSD Currency = "USD"

	CategoryCash          Category = "Efectivo"
	CategoryCreditCard    Category = "Tarjeta de Crédito"
	CategoryDebitAccount  Category = "Cuenta"
	CategoryDigitalWallet Category = "Billetera Digital"
	CategoryBusiness      Category = "Empresa"

	maxDescriptionLen = 200
)

type (
	// Member is one of the two household members.
	Member string

	// Beneficiary attributes an expense for settlement purposes.
	Beneficiary string

	Nature   string
	Currency string
	Category string

	// Transaction is a single ledger entry. Entries are never mutated once
	// committed; deletion removes them entirely.
	Transaction struct {
		ID                   string          `json:"id"`
		Amount               decimal.Decimal `json:"amount"`
		Currency             Currency        `json:"currency"`
		Description          string          `json:"description"`
		OccurredAt           time.Time       `json:"date"`
		Payer                Member          `json:"payer"`
		Beneficiary          Beneficiary     `json:"type,omitempty"`
		Nature               Nature          `json:"nature"`
		SourceAccountID      string          `json:"paymentMethodId"`
		DestinationAccountID string          `json:"toPaymentMethodId,omitempty"`
		Synced               bool            `json:"synced"`
		IsSettlement         bool            `json:"isSettlement,omitempty"`
		Installments         int             `json:"installments,omitempty"`
	}
)

// Members lists the household in display order.
var Members = []Member{MemberFran, MemberCar}

// Currencies lists the supported currencies in display order.
var Currencies = []Currency{CurrencyARS, CurrencyUSD}

// NewID returns a fresh transaction id.
func NewID() string {
	return uuid.NewString()
}

func (m Member) Valid() bool {
	return m == MemberFran || m == MemberCar
}

// Other returns the other household member.
func (m Member) Other() Member {
	if m == MemberFran {
		return MemberCar
	}
	return MemberFran
}

func (b Beneficiary) Valid() bool {
	switch b {
	case BeneficiaryFran, BeneficiaryCar, BeneficiaryShared:
		return true
	}
	return false
}

func (n Nature) Valid() bool {
	switch n {
	case NatureExpense, NatureIncome, NatureTransfer:
		return true
	}
	return false
}

func (c Currency) Valid() bool {
	return c == CurrencyARS || c == CurrencyUSD
}

func (c Category) Valid() bool {
	switch c {
	case CategoryCash, CategoryCreditCard, CategoryDebitAccount, CategoryDigitalWallet, CategoryBusiness:
		return true
	}
	return false
}

// Liquid reports whether accounts of this category are subject to the
// non-negative balance rule.
func (c Category) Liquid() bool {
	return c != CategoryCreditCard
}

// ParseCurrency accepts any casing and surrounding whitespace.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

// InstallmentCount returns the number of months the transaction is spread
// over. Absent or non-positive counts mean a single month.
func (t Transaction) InstallmentCount() int {
	if t.Installments <= 1 {
		return 1
	}
	return t.Installments
}

func (t Transaction) IsInstallment() bool {
	return t.InstallmentCount() > 1
}

// Validate checks the structural invariants of a transaction. It does not
// look at balances or the account registry.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Currency.Valid() {
		return ErrInvalidCurrency
	}
	if !t.Nature.Valid() {
		return ErrInvalidNature
	}
	if !t.Payer.Valid() {
		return ErrInvalidPayer
	}
	if t.OccurredAt.IsZero() {
		return ErrMissingDate
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if NormalizeAccountID(t.SourceAccountID) == "" {
		return ErrMissingSourceAccount
	}
	if t.Installments < 0 {
		return ErrInvalidInstallments
	}
	if t.IsInstallment() && t.Nature != NatureExpense {
		return ErrInvalidInstallments
	}

	switch t.Nature {
	case NatureTransfer:
		if NormalizeAccountID(t.DestinationAccountID) == "" {
			return ErrMissingDestination
		}
		if SameAccount(t.SourceAccountID, t.DestinationAccountID) {
			return ErrSameAccount
		}
	default:
		if strings.TrimSpace(t.DestinationAccountID) != "" {
			return ErrUnexpectedDestination
		}
		if t.IsSettlement {
			return ErrInvalidSettlement
		}
	}

	if t.Nature == NatureExpense && !t.Beneficiary.Valid() {
		return ErrInvalidBeneficiary
	}
	if t.Beneficiary != "" && !t.Beneficiary.Valid() {
		return ErrInvalidBeneficiary
	}
	return nil
}
