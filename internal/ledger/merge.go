package ledger

import (
	"slices"

	"brunance/internal/core"
)

// Tombstones is the set of ids deleted locally whose deletion has not yet
// been confirmed by the remote. It stops a pull from resurrecting them.
type Tombstones map[string]struct{}

func NewTombstones(ids ...string) Tombstones {
	t := make(Tombstones, len(ids))
	for _, id := range ids {
		t.Add(id)
	}
	return t
}

func (t Tombstones) Add(id string) {
	if id != "" {
		t[id] = struct{}{}
	}
}

func (t Tombstones) Has(id string) bool {
	_, ok := t[id]
	return ok
}

// IDs returns the set sorted, for stable persistence and logs.
func (t Tombstones) IDs() []string {
	out := make([]string, 0, len(t))
	for id := range t {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Clear drops ids once their deletion has been propagated.
func (t Tombstones) Clear(ids ...string) {
	for _, id := range ids {
		delete(t, id)
	}
}

// MergeResult is the outcome of Merge.
type MergeResult struct {
	Transactions []core.Transaction
	// Added counts remote entries that were new locally.
	Added int
	// Dropped counts remote entries ignored because they were tombstoned.
	Dropped int
}

// Merge unions local and remote by id. Local entries win on conflict and
// keep their order; new remote entries follow in remote order. Tombstoned
// ids are removed from both sides. Merging the same remote twice is a no-op.
func Merge(local, remote []core.Transaction, tombstones Tombstones) MergeResult {
	var res MergeResult
	seen := make(map[string]struct{}, len(local)+len(remote))
	out := make([]core.Transaction, 0, len(local)+len(remote))
	for _, tx := range local {
		if tombstones.Has(tx.ID) {
			continue
		}
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}
		out = append(out, tx)
	}
	for _, tx := range remote {
		if tx.ID == "" {
			continue
		}
		if tombstones.Has(tx.ID) {
			res.Dropped++
			continue
		}
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}
		tx.Synced = true
		out = append(out, tx)
		res.Added++
	}
	res.Transactions = out
	return res
}
