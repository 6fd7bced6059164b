package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrRejected is wrapped by every validator rejection so callers can tell a
// declined transaction apart from an IO failure.
var ErrRejected = errors.New("transaction rejected")

var (
	ErrMissingID             = errors.New("missing transaction id")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrMalformedAmount       = errors.New("malformed amount expression")
	ErrInvalidCurrency       = errors.New("invalid currency")
	ErrInvalidNature         = errors.New("invalid transaction nature")
	ErrInvalidPayer          = errors.New("invalid payer")
	ErrInvalidBeneficiary    = errors.New("invalid beneficiary")
	ErrMissingDate           = errors.New("missing date")
	ErrDescriptionTooLong    = errors.New("description too long (max 200 characters)")
	ErrMissingSourceAccount  = errors.New("missing source account")
	ErrMissingDestination    = errors.New("transfer requires a destination account")
	ErrUnexpectedDestination = errors.New("only transfers carry a destination account")
	ErrSameAccount           = errors.New("source and destination accounts must differ")
	ErrInvalidInstallments   = errors.New("installments only apply to expenses and must be positive")
	ErrInvalidSettlement     = errors.New("only transfers can be settlements")
	ErrUnknownAccount        = errors.New("unknown account")
	ErrHolderNotAllowed      = errors.New("payer is not allowed to use this account")
	ErrNotTransferable       = errors.New("account cannot take part in transfers")
	ErrCreditIncome          = errors.New("income cannot be credited to a credit card")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrNotFound              = errors.New("transaction not found")
	ErrDuplicateID           = errors.New("duplicate transaction id")
	ErrNoDebt                = errors.New("no outstanding debt")
	ErrOutsideSettledMonth   = errors.New("settlement date is outside the settled month")
)

// InsufficientFundsError reports a liquid account that would go negative.
type InsufficientFundsError struct {
	AccountID   string
	AccountName string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: available %s, requested %s",
		e.AccountName, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Reject wraps err so that errors.Is(result, ErrRejected) holds.
func Reject(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRejected, err)
}
