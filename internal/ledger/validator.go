package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"brunance/internal/accounts"
	"brunance/internal/core"
)

// Validator decides whether a candidate transaction may be appended. Every
// rejection wraps core.ErrRejected and nothing is changed on rejection.
type Validator struct {
	reg *accounts.Registry
}

func NewValidator(reg *accounts.Registry) *Validator {
	return &Validator{reg: reg}
}

// Validate checks c against the registry and the current balances in c's
// currency, as returned by Balances.
//
// Expenses and transfers out of a liquid account may not exceed its balance.
// Credit card sources are never blocked; their balance going negative is the
// amount owed. Income has no funds check.
func (v *Validator) Validate(c core.Transaction, balances map[string]decimal.Decimal) error {
	if !c.Amount.IsPositive() {
		return core.Reject(core.ErrInvalidAmount)
	}
	if err := c.Validate(); err != nil {
		return core.Reject(err)
	}

	src, ok := v.reg.Lookup(c.SourceAccountID)
	if !ok {
		return core.Reject(fmt.Errorf("%w: %q", core.ErrUnknownAccount, c.SourceAccountID))
	}
	if !src.AllowsHolder(c.Payer) {
		return core.Reject(fmt.Errorf("%w: %s cannot use %s", core.ErrHolderNotAllowed, c.Payer, src.Name))
	}

	switch c.Nature {
	case core.NatureIncome:
		if !src.Category.Liquid() {
			return core.Reject(core.ErrCreditIncome)
		}
		return nil
	case core.NatureTransfer:
		if err := v.checkTransfer(c, src); err != nil {
			return err
		}
	}

	if !src.Liquid() {
		return nil
	}
	available := balances[src.ID]
	if c.Amount.GreaterThan(available) {
		return core.Reject(&core.InsufficientFundsError{
			AccountID:   src.ID,
			AccountName: src.Name,
			Available:   available,
			Requested:   c.Amount,
		})
	}
	return nil
}

// ValidateAgainst computes balances from txs and validates c against them.
func (v *Validator) ValidateAgainst(c core.Transaction, txs []core.Transaction) error {
	return v.Validate(c, Balances(txs, c.Currency, v.reg))
}

// checkTransfer enforces the holder rules of both legs. An ordinary transfer
// moves money between accounts the payer may use; a settlement lands in one
// of the other member's accounts.
func (v *Validator) checkTransfer(c core.Transaction, src accounts.Account) error {
	dst, ok := v.reg.Lookup(c.DestinationAccountID)
	if !ok {
		return core.Reject(fmt.Errorf("%w: %q", core.ErrUnknownAccount, c.DestinationAccountID))
	}
	if src.ID == dst.ID {
		return core.Reject(core.ErrSameAccount)
	}
	if !src.Transferable() {
		return core.Reject(fmt.Errorf("%w: %s", core.ErrNotTransferable, src.Name))
	}
	if !dst.Transferable() {
		return core.Reject(fmt.Errorf("%w: %s", core.ErrNotTransferable, dst.Name))
	}
	holder := c.Payer
	if c.IsSettlement {
		holder = c.Payer.Other()
	}
	if !dst.AllowsHolder(holder) {
		return core.Reject(fmt.Errorf("%w: %s cannot receive into %s", core.ErrHolderNotAllowed, holder, dst.Name))
	}
	return nil
}

// DefaultDescription fills in the description a transfer gets when the user
// leaves it empty.
func DefaultDescription(c core.Transaction, reg *accounts.Registry) string {
	if c.Description != "" || c.Nature != core.NatureTransfer {
		return c.Description
	}
	return fmt.Sprintf("Pase de %s a %s", reg.Name(c.SourceAccountID), reg.Name(c.DestinationAccountID))
}
