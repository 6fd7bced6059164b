package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"brunance/internal/core"
	"brunance/internal/sheets"
	"brunance/internal/sheets/memory"
)

func newTestSync(t *testing.T, remoteSeed ...core.Transaction) (*SyncService, *LedgerService, *memory.Remote) {
	t.Helper()
	l, repo, _ := newTestLedger(t)
	remote := memory.New(remoteSeed...)
	return NewSyncService(l, remote, repo, SyncConfig{Interval: 20 * time.Millisecond, Timeout: time.Second}), l, remote
}

func TestDefaultSyncConfig(t *testing.T) {
	config := DefaultSyncConfig()
	if config.Interval != 30*time.Second {
		t.Errorf("expected Interval 30s, got %v", config.Interval)
	}
	if config.Timeout != 20*time.Second {
		t.Errorf("expected Timeout 20s, got %v", config.Timeout)
	}
}

func TestSyncMergesBothWays(t *testing.T) {
	fromSheet := income(core.MemberCar, " Cash-Car ", "50", day(2025, 3, 2))
	fromSheet.Synced = true
	s, l, remote := newTestSync(t, fromSheet)
	local := mustSubmit(t, l, income(core.MemberFran, "cash-fran", "100", day(2025, 3, 1)))
	rev := l.Revision()

	report, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Pulled != 1 || report.Added != 1 || report.Pushed != 2 {
		t.Fatalf("report: %+v", report)
	}

	want := []string{local.ID, fromSheet.ID}
	pushed, _ := remote.Pull(context.Background())
	if diff := cmp.Diff(want, ids(pushed)); diff != "" {
		t.Fatalf("remote (-want +got):\n%s", diff)
	}
	got := l.Export()
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Fatalf("local (-want +got):\n%s", diff)
	}
	for _, tx := range got {
		if !tx.Synced {
			t.Fatalf("%s not marked synced", tx.ID)
		}
	}
	if got[1].SourceAccountID != "cash-car" {
		t.Fatalf("remote account id not canonical: %q", got[1].SourceAccountID)
	}
	if len(l.Pending()) != 0 {
		t.Fatalf("pending after sync: %v", ids(l.Pending()))
	}
	if s.LastSyncedRevision() != rev {
		t.Fatalf("last synced revision %d, want %d", s.LastSyncedRevision(), rev)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	s, l, remote := newTestSync(t)
	mustSubmit(t, l, income(core.MemberFran, "cash-fran", "100", day(2025, 3, 1)))

	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := l.Export()
	report, err := s.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Skipped || report.Pushed != 0 {
		t.Fatalf("second sync should skip the push: %+v", report)
	}
	if _, pushes := remote.Calls(); pushes != 1 {
		t.Fatalf("pushes: %d", pushes)
	}
	if diff := cmp.Diff(ids(before), ids(l.Export())); diff != "" {
		t.Fatalf("log changed (-want +got):\n%s", diff)
	}
}

func TestSyncHonorsTombstones(t *testing.T) {
	s, l, remote := newTestSync(t)
	tx := mustSubmit(t, l, income(core.MemberFran, "cash-fran", "100", day(2025, 3, 1)))
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Delete(context.Background(), tx.ID); err != nil {
		t.Fatal(err)
	}

	report, err := s.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Dropped != 1 {
		t.Fatalf("report: %+v", report)
	}
	pushed, _ := remote.Pull(context.Background())
	if len(pushed) != 0 {
		t.Fatalf("deleted entry still remote: %v", ids(pushed))
	}
	if len(l.Export()) != 0 {
		t.Fatalf("deleted entry came back: %v", ids(l.Export()))
	}
	if _, tomb, _ := l.syncSnapshot(); len(tomb) != 0 {
		t.Fatalf("propagated tombstone kept: %v", tomb.IDs())
	}
}

func TestSyncFailureChangesNothing(t *testing.T) {
	boom := errors.New("quota exceeded")
	for _, side := range []string{"pull", "push"} {
		t.Run(side, func(t *testing.T) {
			s, l, remote := newTestSync(t)
			tx := mustSubmit(t, l, income(core.MemberFran, "cash-fran", "100", day(2025, 3, 1)))
			gone := mustSubmit(t, l, income(core.MemberFran, "cash-fran", "5", day(2025, 3, 1)))
			if err := l.Delete(context.Background(), gone.ID); err != nil {
				t.Fatal(err)
			}
			if side == "pull" {
				remote.PullErr = boom
			} else {
				remote.PushErr = boom
			}
			rev := l.Revision()

			if _, err := s.Sync(context.Background()); !errors.Is(err, boom) {
				t.Fatalf("want %v, got %v", boom, err)
			}
			if l.Revision() != rev {
				t.Fatal("failed sync modified the store")
			}
			if got, _ := l.Get(tx.ID); got.Synced {
				t.Fatal("entry marked synced after failed sync")
			}
			if _, tomb, _ := l.syncSnapshot(); !tomb.Has(gone.ID) {
				t.Fatal("tombstone lost after failed sync")
			}
			st, err := s.Status(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if st.LastError == "" || st.Pending != 1 || st.Tombstones != 1 {
				t.Fatalf("status: %+v", st)
			}
		})
	}
}

func TestSyncKeepsEntriesAddedDuringCycle(t *testing.T) {
	l, _, _ := newTestLedger(t)
	first := mustSubmit(t, l, income(core.MemberFran, "cash-fran", "100", day(2025, 3, 1)))

	local, tomb, _ := l.syncSnapshot()
	late := mustSubmit(t, l, income(core.MemberCar, "cash-car", "7", day(2025, 3, 2)))

	pushed := make([]core.Transaction, len(local))
	for i, tx := range local {
		tx.Synced = true
		pushed[i] = tx
	}
	if _, err := l.applySync(context.Background(), pushed, tomb.IDs()); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{first.ID, late.ID}, ids(l.Export())); diff != "" {
		t.Fatalf("log (-want +got):\n%s", diff)
	}
	if got, _ := l.Get(late.ID); got.Synced {
		t.Fatal("entry added during the cycle marked synced")
	}
}

func TestSyncNotConfigured(t *testing.T) {
	l, repo, _ := newTestLedger(t)
	s := NewSyncService(l, nil, repo, SyncConfig{})
	if _, err := s.Sync(context.Background()); !errors.Is(err, sheets.ErrNotConfigured) {
		t.Fatalf("Sync: want ErrNotConfigured, got %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, sheets.ErrNotConfigured) {
		t.Fatalf("Start: want ErrNotConfigured, got %v", err)
	}
}

func TestSyncLoopLifecycle(t *testing.T) {
	s, l, remote := newTestSync(t)
	mustSubmit(t, l, income(core.MemberFran, "cash-fran", "100", day(2025, 3, 1)))

	if s.IsRunning() {
		t.Fatal("should not be running initially")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop when not running: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("expected error when starting twice")
	}
	s.Trigger()
	s.Trigger()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if pulls, _ := remote.Calls(); pulls >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("loop did not sync")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsRunning() {
		t.Fatal("still running after Stop")
	}
	if len(l.Pending()) != 0 {
		t.Fatalf("pending after loop sync: %d", len(l.Pending()))
	}
}
