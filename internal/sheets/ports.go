package sheets

import (
	"context"
	"errors"

	"brunance/internal/core"
)

// ErrNotConfigured is returned by remotes that were built without a target.
var ErrNotConfigured = errors.New("remote not configured")

// Ports for the remote copy of the ledger.
type (
	// Puller reads the whole remote log. Entries may carry account ids whose
	// case or surrounding whitespace changed on the way through spreadsheet
	// cells.
	Puller interface {
		Pull(ctx context.Context) ([]core.Transaction, error)
	}

	// Pusher overwrites the remote log with txs.
	Pusher interface {
		Push(ctx context.Context, txs []core.Transaction) error
	}

	Remote interface {
		Puller
		Pusher
	}
)
