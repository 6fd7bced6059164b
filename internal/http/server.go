// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"brunance/internal/cache"
	"brunance/internal/core"
	"brunance/internal/log"
	"brunance/internal/middleware/ratelimit"
	"brunance/internal/middleware/security"
	"brunance/internal/middleware/trace"
	"brunance/internal/services"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 16 << 20

	viewCacheSize = 64
	viewCacheTTL  = 10 * time.Minute
)

// Syncer runs a sync on demand and reports its state.
type Syncer interface {
	Sync(ctx context.Context) (services.SyncReport, error)
	Status(ctx context.Context) (services.SyncStatus, error)
}

// Options holds the optional collaborators of the server.
type Options struct {
	// Sync may be nil when no remote is configured.
	Sync Syncer
	// Ready reports whether persistence is reachable. Nil means always ready.
	Ready              func(ctx context.Context) error
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	ledger  *services.LedgerService
	syncer  Syncer
	ready   func(ctx context.Context) error
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	// Month views keyed by ledger revision, so a stale entry is never served.
	historyCache *cache.LRUCache[[]core.Transaction]
	summaryCache *cache.LRUCache[summaryView]
	caches       *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, ledger *services.LedgerService, opts Options) *Server {
	mux := http.NewServeMux()
	ips := security.NewClientIPResolver()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:       ledger,
		syncer:       opts.Sync,
		ready:        opts.Ready,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:       trace.NewMiddleware(ips.ClientIP),
		historyCache: cache.NewLRUCache[[]core.Transaction](viewCacheSize, viewCacheTTL),
		summaryCache: cache.NewLRUCache[summaryView](viewCacheSize, viewCacheTTL),
		caches:       cache.NewManager(),
	}
	s.caches.Register(s.historyCache)
	s.caches.Register(s.summaryCache)
	s.caches.StartCleanup(viewCacheTTL)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/accounts", s.handleAccounts)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/balances", s.handleBalances)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/settlement", s.handleSettlementPrefill)
	mux.HandleFunc("POST /api/settlement", s.handleSettle)
	mux.HandleFunc("POST /api/amount/eval", s.handleEvalAmount)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/sync", s.handleSyncStatus)
	mux.HandleFunc("POST /api/sync", s.handleSync)

	var h http.Handler = mux
	h = s.limiter.Middleware(ips.ClientIP, handleRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(h)
	h = log.Middleware(log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentHTTP}))(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"revision": s.ledger.Revision(),
	})
}

func handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", "path", r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}
