package accounts

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"brunance/internal/core"
)

var ErrInvalidCatalog = errors.New("invalid account catalog")

// Registry resolves account ids. It is built once at startup and is safe for
// concurrent use since it is never mutated afterwards.
type Registry struct {
	accounts []Account
	byKey    map[string]int
}

// NormalizeID is the comparison key used at every lookup boundary.
func NormalizeID(id string) string {
	return core.NormalizeAccountID(id)
}

// New validates the catalog and builds a registry. Accounts without explicit
// holders default to their owner (both members for jointly owned accounts).
func New(list []Account) (*Registry, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCatalog)
	}
	r := &Registry{
		accounts: make([]Account, 0, len(list)),
		byKey:    make(map[string]int, len(list)),
	}
	var errs []error
	for i, a := range list {
		a = a.clone()
		a.Unknown = false
		key := NormalizeID(a.ID)
		switch {
		case key == "":
			errs = append(errs, fmt.Errorf("account #%d: missing id", i+1))
			continue
		case key == UnknownID:
			errs = append(errs, fmt.Errorf("account %q: id is reserved", a.ID))
			continue
		}
		if _, dup := r.byKey[key]; dup {
			errs = append(errs, fmt.Errorf("account %q: duplicate id", a.ID))
			continue
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		if !a.Category.Valid() {
			errs = append(errs, fmt.Errorf("account %q: invalid category %q", a.ID, a.Category))
		}
		if !a.Owner.Valid() && a.Owner != core.OwnerBoth {
			errs = append(errs, fmt.Errorf("account %q: invalid owner %q", a.ID, a.Owner))
		}
		if len(a.AllowedHolders) == 0 {
			if a.Owner == core.OwnerBoth {
				a.AllowedHolders = append([]core.Member(nil), core.Members...)
			} else {
				a.AllowedHolders = []core.Member{a.Owner}
			}
		}
		for _, h := range a.AllowedHolders {
			if !h.Valid() {
				errs = append(errs, fmt.Errorf("account %q: invalid holder %q", a.ID, h))
			}
		}
		r.byKey[key] = len(r.accounts)
		r.accounts = append(r.accounts, a)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return r, nil
}

// Default returns the built-in household catalog.
func Default() *Registry {
	r, err := New(builtin())
	if err != nil {
		panic(err)
	}
	return r
}

type catalogFile struct {
	Accounts []Account `toml:"account"`
}

// LoadFile reads a TOML catalog made of [[account]] tables.
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := toml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return New(f.Accounts)
}

// Load returns the catalog at path, or the built-in one when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Lookup finds an account by id, ignoring case and surrounding whitespace.
func (r *Registry) Lookup(id string) (Account, bool) {
	i, ok := r.byKey[NormalizeID(id)]
	if !ok {
		return Account{}, false
	}
	return r.accounts[i].clone(), true
}

// Resolve is Lookup that never fails: unknown ids map to the Unknown bucket.
func (r *Registry) Resolve(id string) Account {
	if a, ok := r.Lookup(id); ok {
		return a
	}
	return Unknown
}

// Key returns the canonical id for id, or UnknownID.
func (r *Registry) Key(id string) string {
	if i, ok := r.byKey[NormalizeID(id)]; ok {
		return r.accounts[i].ID
	}
	return UnknownID
}

// All returns the catalog in declaration order.
func (r *Registry) All() []Account {
	out := make([]Account, len(r.accounts))
	for i, a := range r.accounts {
		out[i] = a.clone()
	}
	return out
}

// Name returns the display name for id, falling back to the raw id.
func (r *Registry) Name(id string) string {
	if a, ok := r.Lookup(id); ok {
		return a.Name
	}
	return id
}

// LiquidAccounts returns m's own accounts that can take part in a transfer,
// in catalog order.
func (r *Registry) LiquidAccounts(m core.Member) []Account {
	var out []Account
	for _, a := range r.accounts {
		if a.Transferable() && a.BelongsTo(m) && a.AllowsHolder(m) {
			out = append(out, a.clone())
		}
	}
	return out
}

// UsableBy returns the accounts m may pay from, in catalog order.
func (r *Registry) UsableBy(m core.Member) []Account {
	var out []Account
	for _, a := range r.accounts {
		if a.AllowsHolder(m) {
			out = append(out, a.clone())
		}
	}
	return out
}
