// Package accounts holds the fixed catalog of payment accounts.
package accounts

import (
	"slices"

	"brunance/internal/core"
)

// UnknownID is the key of the synthetic bucket that collects references to
// ids missing from the catalog.
const UnknownID = "unknown"

// Account is an immutable reference record. Registries hand out copies.
type Account struct {
	ID             string        `toml:"id" json:"id"`
	Name           string        `toml:"name" json:"name"`
	Category       core.Category `toml:"category" json:"category"`
	Bank           string        `toml:"bank,omitempty" json:"bank,omitempty"`
	Owner          core.Member   `toml:"owner" json:"owner"`
	AllowedHolders []core.Member `toml:"allowed_holders" json:"allowedHolders"`
	// NoTransfers keeps the account out of transfer origins and destinations.
	NoTransfers bool `toml:"no_transfers,omitempty" json:"noTransfers,omitempty"`
	Unknown     bool `toml:"-" json:"unknown,omitempty"`
}

// Unknown is the synthetic bucket account.
var Unknown = Account{
	ID:      UnknownID,
	Name:    "Cuenta desconocida",
	Unknown: true,
}

// Liquid reports whether the non-negative balance rule applies.
func (a Account) Liquid() bool {
	return !a.Unknown && a.Category.Liquid()
}

// Transferable reports whether the account may be the origin or destination
// of a transfer.
func (a Account) Transferable() bool {
	return a.Liquid() && !a.NoTransfers
}

// AllowsHolder reports whether m may transact from the account.
func (a Account) AllowsHolder(m core.Member) bool {
	return slices.Contains(a.AllowedHolders, m)
}

// BelongsTo reports whether m owns the account, alone or jointly.
func (a Account) BelongsTo(m core.Member) bool {
	return a.Owner == m || a.Owner == core.OwnerBoth
}

func (a Account) clone() Account {
	a.AllowedHolders = slices.Clone(a.AllowedHolders)
	return a
}
