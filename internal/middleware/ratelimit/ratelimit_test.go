package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllow_WindowResets(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	if ok, rem := rl.Allow("a"); !ok || rem != 1 {
		t.Fatalf("first Allow() = %v, %d", ok, rem)
	}
	if ok, rem := rl.Allow("a"); !ok || rem != 0 {
		t.Fatalf("second Allow() = %v, %d", ok, rem)
	}
	if ok, _ := rl.Allow("a"); ok {
		t.Fatal("third Allow() should be limited")
	}
	if ok, _ := rl.Allow("b"); !ok {
		t.Fatal("other clients have their own budget")
	}

	*now = now.Add(30 * time.Second)
	if ok, _ := rl.Allow("a"); ok {
		t.Fatal("window must not slide on rejected requests")
	}

	*now = now.Add(31 * time.Second)
	if ok, _ := rl.Allow("a"); !ok {
		t.Fatal("Allow() after window should pass")
	}

	if m := rl.GetMetrics(); m.TotalHits != 2 || m.ClientCount != 2 {
		t.Errorf("GetMetrics() = %+v, want 2 hits and 2 clients", m)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, now := newTestLimiter(t, 5)
	rl.Allow("a")
	*now = now.Add(11 * time.Minute)
	rl.Allow("b")
	rl.cleanupStaleEntries()

	if m := rl.GetMetrics(); m.ClientCount != 1 {
		t.Errorf("ClientCount = %d, want 1", m.ClientCount)
	}
}

func TestMiddleware_OnlyMutatingRequests(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodPost, http.StatusOK},
		{http.MethodGet, http.StatusOK},
		{http.MethodDelete, http.StatusTooManyRequests},
	}
	for i, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/", nil))
		if rec.Code != tt.want {
			t.Fatalf("request %d (%s) status = %d, want %d", i, tt.method, rec.Code, tt.want)
		}
		if tt.want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
		}
	}
}
