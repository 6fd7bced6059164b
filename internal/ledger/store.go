// Package ledger implements the household ledger: the transaction log and
// the balances, period views, settlement and validation derived from it.
//
// Everything except Store is a pure function over a snapshot returned by
// Store.All; results are recomputed on demand rather than kept up to date
// incrementally.
package ledger

import (
	"fmt"
	"slices"
	"sync"

	"brunance/internal/core"
)

// Store is the ordered, append-only transaction log. Entries are never
// edited in place; Remove deletes them entirely.
type Store struct {
	mu   sync.RWMutex
	txs  []core.Transaction
	byID map[string]int
	rev  uint64
}

// NewStore builds a store seeded with initial, keeping its order.
func NewStore(initial []core.Transaction) (*Store, error) {
	s := &Store{}
	if err := s.Replace(initial); err != nil {
		return nil, err
	}
	s.rev = 0
	return s, nil
}

// Append adds tx at the end of the log. The caller is expected to have
// validated it.
func (s *Store) Append(tx core.Transaction) error {
	if tx.ID == "" {
		return core.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byID[tx.ID]; dup {
		return fmt.Errorf("%w: %s", core.ErrDuplicateID, tx.ID)
	}
	s.byID[tx.ID] = len(s.txs)
	s.txs = append(s.txs, tx)
	s.rev++
	return nil
}

// Remove deletes the entry with the given id and returns it.
func (s *Store) Remove(id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	tx := s.txs[i]
	s.txs = slices.Delete(s.txs, i, i+1)
	s.reindex()
	s.rev++
	return tx, nil
}

// All returns a copy of the log in insertion order.
func (s *Store) All() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.txs)
}

// Snapshot returns the log together with the revision it corresponds to.
func (s *Store) Snapshot() ([]core.Transaction, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.txs), s.rev
}

func (s *Store) Get(id string) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return core.Transaction{}, false
	}
	return s.txs[i], true
}

// Replace swaps the whole log, as done by import and sync. Duplicate ids
// leave the store untouched.
func (s *Store) Replace(txs []core.Transaction) error {
	seen := make(map[string]int, len(txs))
	for i, tx := range txs {
		if tx.ID == "" {
			return fmt.Errorf("entry %d: %w", i+1, core.ErrMissingID)
		}
		if _, dup := seen[tx.ID]; dup {
			return fmt.Errorf("%w: %s", core.ErrDuplicateID, tx.ID)
		}
		seen[tx.ID] = i
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = slices.Clone(txs)
	s.byID = seen
	s.rev++
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Revision increases on every mutation. Views derived from the log can be
// cached under it.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

func (s *Store) reindex() {
	s.byID = make(map[string]int, len(s.txs))
	for i, tx := range s.txs {
		s.byID[tx.ID] = i
	}
}
