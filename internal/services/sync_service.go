package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"brunance/internal/core"
	"brunance/internal/ledger"
	"brunance/internal/log"
	"brunance/internal/sheets"
	"brunance/internal/storage"
)

// SyncConfig holds configuration for the sync service
type SyncConfig struct {
	// Interval is how often the poll loop syncs (default: 30s)
	Interval time.Duration

	// Timeout bounds a single pull/merge/push cycle (default: 20s)
	Timeout time.Duration
}

// DefaultSyncConfig returns sensible defaults
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Interval: 30 * time.Second,
		Timeout:  20 * time.Second,
	}
}

// SyncReport describes one completed sync. Revision is the store revision
// whose content the cycle reconciled; entries appended after it are left for
// the next cycle.
type SyncReport struct {
	Pulled   int           `json:"pulled"`
	Added    int           `json:"added"`
	Dropped  int           `json:"dropped"`
	Pushed   int           `json:"pushed"`
	Skipped  bool          `json:"skipped"`
	Revision uint64        `json:"revision"`
	Duration time.Duration `json:"duration"`
}

// SyncStatus is the state reported to clients.
type SyncStatus struct {
	storage.SyncState
	Pending    int  `json:"pending"`
	Tombstones int  `json:"tombstones"`
	Running    bool `json:"running"`
}

// SyncService reconciles the ledger with the remote copy: pull, merge by id
// (local wins, tombstones honored), push the merged log, then commit it
// locally. Nothing is committed when the pull or the push fails.
type SyncService struct {
	ledger *LedgerService
	remote sheets.Remote
	state  Persistence
	config SyncConfig
	logger *log.Logger

	// syncMu allows one cycle at a time.
	syncMu       sync.Mutex
	lastRevision atomic.Uint64

	// Lifecycle management
	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	triggerCh chan struct{}
}

// NewSyncService creates a sync service. state persists the outcome of each
// cycle and is usually the ledger's own Persistence.
func NewSyncService(l *LedgerService, remote sheets.Remote, state Persistence, config SyncConfig) *SyncService {
	def := DefaultSyncConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &SyncService{
		ledger:    l,
		remote:    remote,
		state:     state,
		config:    config,
		logger:    log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentSync}),
		triggerCh: make(chan struct{}, 1),
	}
}

// Sync runs one cycle.
func (s *SyncService) Sync(ctx context.Context) (SyncReport, error) {
	if s.remote == nil {
		return SyncReport{}, sheets.ErrNotConfigured
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	report, err := s.run(ctx)
	report.Duration = time.Since(start)
	s.record(ctx, report, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Sync failed", log.FieldOperation, log.OpSync, log.FieldError, err)
		return report, err
	}
	s.lastRevision.Store(report.Revision)
	s.logger.InfoContext(ctx, "Sync completed",
		log.FieldOperation, log.OpSync,
		"pulled", report.Pulled,
		"added", report.Added,
		"dropped", report.Dropped,
		"pushed", report.Pushed,
		"skipped", report.Skipped,
		log.FieldRevision, report.Revision,
		log.FieldDuration, report.Duration.Milliseconds())
	return report, nil
}

func (s *SyncService) run(ctx context.Context) (SyncReport, error) {
	local, tomb, rev := s.ledger.syncSnapshot()

	remote, err := s.remote.Pull(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("pull: %w", err)
	}
	remote = s.canonicalize(remote)

	res := ledger.Merge(local, remote, tomb)
	report := SyncReport{Pulled: len(remote), Added: res.Added, Dropped: res.Dropped}

	pushed := make([]core.Transaction, len(res.Transactions))
	for i, tx := range res.Transactions {
		tx.Synced = true
		pushed[i] = tx
	}

	if upToDate(local, remote, tomb, res) {
		report.Skipped = true
		report.Revision = rev
		return report, nil
	}

	if err := s.remote.Push(ctx, pushed); err != nil {
		return report, fmt.Errorf("push: %w", err)
	}
	report.Pushed = len(pushed)

	if _, err := s.ledger.applySync(ctx, pushed, tomb.IDs()); err != nil {
		return report, fmt.Errorf("commit: %w", err)
	}
	report.Revision = rev
	return report, nil
}

// upToDate reports whether the remote already holds exactly the local log,
// in which case the push is skipped.
func upToDate(local, remote []core.Transaction, tomb ledger.Tombstones, res ledger.MergeResult) bool {
	if len(tomb) > 0 || res.Added > 0 || res.Dropped > 0 || len(local) != len(remote) {
		return false
	}
	ids := make(map[string]struct{}, len(remote))
	for _, tx := range remote {
		ids[tx.ID] = struct{}{}
	}
	if len(ids) != len(local) {
		return false
	}
	for _, tx := range local {
		if !tx.Synced {
			return false
		}
	}
	return true
}

// canonicalize trims ids that went through spreadsheet cells and maps known
// account ids back to their canonical form. Unknown accounts are kept as
// written and fall into the unknown bucket.
func (s *SyncService) canonicalize(txs []core.Transaction) []core.Transaction {
	reg := s.ledger.Registry()
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		tx.ID = strings.TrimSpace(tx.ID)
		if a, ok := reg.Lookup(tx.SourceAccountID); ok {
			tx.SourceAccountID = a.ID
		}
		if a, ok := reg.Lookup(tx.DestinationAccountID); ok {
			tx.DestinationAccountID = a.ID
		}
		out = append(out, tx)
	}
	return out
}

func (s *SyncService) record(ctx context.Context, report SyncReport, syncErr error) {
	if s.state == nil {
		return
	}
	// The cycle context may have expired; the outcome is still recorded.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	st, err := s.state.LoadSyncState(wctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load sync state", log.FieldError, err)
	}
	if syncErr != nil {
		st.LastError = syncErr.Error()
	} else {
		st = storage.SyncState{
			LastSyncedAt: time.Now().UTC(),
			Pulled:       report.Pulled,
			Pushed:       report.Pushed,
		}
	}
	if err := s.state.SaveSyncState(wctx, st); err != nil {
		s.logger.WarnContext(ctx, "Failed to save sync state", log.FieldError, err)
	}
}

// LastSyncedRevision is the store revision reconciled by the last successful
// cycle. A sync request for a revision at or below it is already covered.
func (s *SyncService) LastSyncedRevision() uint64 {
	return s.lastRevision.Load()
}

// Status reports the last outcome and what is waiting to be synced.
func (s *SyncService) Status(ctx context.Context) (SyncStatus, error) {
	var st storage.SyncState
	if s.state != nil {
		var err error
		if st, err = s.state.LoadSyncState(ctx); err != nil {
			return SyncStatus{}, fmt.Errorf("load sync state: %w", err)
		}
	}
	_, tomb, _ := s.ledger.syncSnapshot()
	return SyncStatus{
		SyncState:  st,
		Pending:    len(s.ledger.Pending()),
		Tombstones: len(tomb),
		Running:    s.IsRunning(),
	}, nil
}

// Start begins the poll loop. Returns an error if already running.
func (s *SyncService) Start(ctx context.Context) error {
	if s.remote == nil {
		return sheets.ErrNotConfigured
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sync service is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Sync loop started", "interval", s.config.Interval)
	return nil
}

// Stop gracefully stops the loop and waits for the current cycle.
func (s *SyncService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Sync loop stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Sync loop stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// IsRunning returns whether the loop is currently running
func (s *SyncService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger asks the loop for an immediate cycle. Requests made while one is
// already queued are coalesced.
func (s *SyncService) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

func (s *SyncService) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		case <-s.triggerCh:
			s.cycle(ctx)
		}
	}
}

// cycle runs Sync, logging instead of returning errors.
func (s *SyncService) cycle(ctx context.Context) {
	if _, err := s.Sync(ctx); err != nil && ctx.Err() == nil {
		s.logger.DebugContext(ctx, "Sync cycle failed; retrying next tick", log.FieldError, err)
	}
}
