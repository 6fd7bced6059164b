package http

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"brunance/internal/services"
	"brunance/internal/sheets"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := services.WriteBackup(&buf, s.ledger.Export()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	name := services.BackupFileName(s.ledger.Now())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleImport replaces the whole log with the uploaded backup.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	txs, err := services.ReadBackup(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	n, err := s.ledger.Import(r.Context(), txs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": n,
		"revision": s.ledger.Revision(),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeServiceError(w, r, sheets.ErrNotConfigured)
		return
	}
	// The sync outlives a dropped client; it has its own timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Minute)
	defer cancel()

	report, err := s.syncer.Sync(ctx)
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "sync failed: " + err.Error()})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeServiceError(w, r, sheets.ErrNotConfigured)
		return
	}
	st, err := s.syncer.Status(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
