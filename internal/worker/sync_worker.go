package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"brunance/internal/amqp"
	"brunance/internal/core"
	"brunance/internal/services"
)

// Syncer runs sync cycles; implemented by services.SyncService.
type Syncer interface {
	Sync(ctx context.Context) (services.SyncReport, error)
	LastSyncedRevision() uint64
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Consumer delivers sync requests; implemented by amqp.Client.
type Consumer interface {
	ConsumeSyncRequests(ctx context.Context, handler amqp.SyncRequestHandler) error
}

// PendingLister reports entries that have not reached the remote yet.
type PendingLister interface {
	Pending() []core.Transaction
}

// SyncWorker drives synchronization from two sources: sync requests
// published after every mutation, and the periodic loop that catches
// anything a lost message would miss.
type SyncWorker struct {
	syncer      Syncer
	consumer    Consumer
	pending     PendingLister
	stopTimeout time.Duration
}

// NewSyncWorker creates a worker. consumer may be nil, in which case only
// the periodic loop runs.
func NewSyncWorker(syncer Syncer, consumer Consumer, pending PendingLister) *SyncWorker {
	return &SyncWorker{
		syncer:      syncer,
		consumer:    consumer,
		pending:     pending,
		stopTimeout: 10 * time.Second,
	}
}

// HandleSyncRequest processes a single sync request from AMQP. Requests for
// revisions already reconciled are acknowledged without a new cycle.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	if last := w.syncer.LastSyncedRevision(); msg.Revision != 0 && msg.Revision <= last {
		slog.DebugContext(ctx, "Sync request already covered",
			"reason", msg.Reason,
			"revision", msg.Revision,
			"last_synced_revision", last)
		return nil
	}

	slog.InfoContext(ctx, "Processing sync request",
		"reason", msg.Reason,
		"revision", msg.Revision)

	if _, err := w.syncer.Sync(ctx); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// StartupSyncCheck reconciles once at startup. This recovers entries whose
// sync request was lost while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if w.pending != nil {
		if n := len(w.pending.Pending()); n > 0 {
			slog.InfoContext(ctx, "Found pending transactions on startup", "count", n)
		} else {
			slog.InfoContext(ctx, "No pending transactions found on startup")
		}
	}

	report, err := w.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"pulled", report.Pulled,
		"added", report.Added,
		"pushed", report.Pushed)
	return nil
}

// Run performs the startup check, then runs the periodic loop and the AMQP
// consumer until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		// The loop retries; a remote that is down at boot is not fatal.
		slog.WarnContext(ctx, "Startup sync failed", "error", err)
	}

	if err := w.syncer.Start(ctx); err != nil {
		return fmt.Errorf("start sync loop: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if w.consumer != nil {
		g.Go(func() error {
			err := w.consumer.ConsumeSyncRequests(gctx, w.HandleSyncRequest)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), w.stopTimeout)
		defer cancel()
		return w.syncer.Stop(stopCtx)
	})

	return g.Wait()
}
