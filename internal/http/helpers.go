package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"brunance/internal/core"
	"brunance/internal/log"
	"brunance/internal/services"
	"brunance/internal/sheets"
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error     string           `json:"error"`
	Available *decimal.Decimal `json:"available,omitempty"`
	AccountID string           `json:"accountId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps ledger errors to status codes. Rejections carry
// the reason; the available balance is included for insufficient funds.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		fields := log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()).
			WithError(err)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
		writeError(w, status, http.StatusText(status))
		return
	}

	resp := errorResponse{Error: err.Error()}
	var funds *core.InsufficientFundsError
	if errors.As(err, &funds) {
		avail := funds.Available.Round(2)
		resp.Available = &avail
		resp.AccountID = funds.AccountID
	}
	writeJSON(w, status, resp)
}

func errorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrMalformedAmount), errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, services.ErrInvalidBackup), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateID), errors.Is(err, core.ErrNoDebt):
		return http.StatusConflict
	case errors.Is(err, sheets.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads a single JSON value of at most limit bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty body")
		}
		return badRequest("invalid JSON: %v", err)
	}
	if dec.More() {
		return badRequest("unexpected data after JSON body")
	}
	return nil
}

// parsePeriod reads the month from the query, either as period=YYYY-MM or as
// year and month. ok is false when none is given.
func parsePeriod(r *http.Request) (p core.Period, ok bool, err error) {
	q := r.URL.Query()
	ys, ms := strings.TrimSpace(q.Get("year")), strings.TrimSpace(q.Get("month"))
	if v := strings.TrimSpace(q.Get("period")); v != "" {
		if ys != "" || ms != "" {
			return core.Period{}, false, badRequest("period cannot be combined with year and month")
		}
		if p, err = core.ParsePeriod(v); err != nil {
			return core.Period{}, false, err
		}
		return p, true, nil
	}
	if ys == "" && ms == "" {
		return core.Period{}, false, nil
	}
	if ys == "" || ms == "" {
		return core.Period{}, false, badRequest("year and month must be given together")
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return core.Period{}, false, badRequest("invalid year %q", ys)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return core.Period{}, false, badRequest("invalid month %q", ms)
	}
	p, err = core.NewPeriod(y, m)
	if err != nil {
		return core.Period{}, false, err
	}
	return p, true, nil
}

// parseCurrency reads the currency query parameter, defaulting to ARS.
func parseCurrency(r *http.Request) (core.Currency, error) {
	v := strings.TrimSpace(r.URL.Query().Get("currency"))
	if v == "" {
		return core.CurrencyARS, nil
	}
	c, err := core.ParseCurrency(v)
	if err != nil {
		return "", badRequest("%v", err)
	}
	return c, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates. A plain date is
// placed at noon in loc so it stays on the same calendar day in nearby zones.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q", s)
	}
	return d.Add(12 * time.Hour), nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
