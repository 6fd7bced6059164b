// Package memory provides an in-process remote used when no spreadsheet is
// configured and by tests.
package memory

import (
	"context"
	"sync"

	"brunance/internal/core"
	ports "brunance/internal/sheets"
)

// Remote keeps the remote log in memory.
type Remote struct {
	mu     sync.Mutex
	items  []core.Transaction
	pulls  int
	pushes int

	// PullErr and PushErr, when set, are returned by the next calls.
	PullErr error
	PushErr error
}

var _ ports.Remote = (*Remote)(nil)

func New(seed ...core.Transaction) *Remote {
	return &Remote{items: clone(seed)}
}

// Pull returns a copy of the stored log.
func (r *Remote) Pull(ctx context.Context) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pulls++
	if r.PullErr != nil {
		return nil, r.PullErr
	}
	return clone(r.items), nil
}

// Push replaces the stored log.
func (r *Remote) Push(ctx context.Context, txs []core.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes++
	if r.PushErr != nil {
		return r.PushErr
	}
	r.items = clone(txs)
	return nil
}

// Set replaces the stored log without counting as a push.
func (r *Remote) Set(txs []core.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = clone(txs)
}

// Calls returns how many pulls and pushes were attempted.
func (r *Remote) Calls() (pulls, pushes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pulls, r.pushes
}

func clone(in []core.Transaction) []core.Transaction {
	if in == nil {
		return nil
	}
	return append([]core.Transaction(nil), in...)
}
