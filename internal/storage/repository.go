package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"brunance/internal/core"
	"brunance/internal/ledger"
)

// SyncState is the outcome of the last sync attempt.
type SyncState struct {
	LastSyncedAt time.Time `json:"lastSyncedAt"`
	LastError    string    `json:"lastError,omitempty"`
	Pulled       int       `json:"pulled"`
	Pushed       int       `json:"pushed"`
}

// MemoryRepository keeps the log in process memory. It backs the memory data
// backend and tests.
type MemoryRepository struct {
	mu    sync.Mutex
	txs   []core.Transaction
	tomb  []string
	state SyncState
	// FailSave makes SaveLedger fail, for exercising rollback paths.
	FailSave error
}

func NewMemoryRepository(seed ...core.Transaction) *MemoryRepository {
	return &MemoryRepository{txs: slices.Clone(seed)}
}

func (r *MemoryRepository) Load(_ context.Context) ([]core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.txs), nil
}

// SaveLedger replaces the log and the tombstone set together.
func (r *MemoryRepository) SaveLedger(_ context.Context, txs []core.Transaction, t ledger.Tombstones) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	r.txs = slices.Clone(txs)
	r.tomb = t.IDs()
	return nil
}

func (r *MemoryRepository) LoadTombstones(_ context.Context) (ledger.Tombstones, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ledger.NewTombstones(r.tomb...), nil
}

func (r *MemoryRepository) LoadSyncState(_ context.Context) (SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, nil
}

func (r *MemoryRepository) SaveSyncState(_ context.Context, s SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	return nil
}

func (r *MemoryRepository) Close() error { return nil }
