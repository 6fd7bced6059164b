package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	goption "google.golang.org/api/option"

	"brunance/internal/core"
	ports "brunance/internal/sheets"
)

// fakeSheets serves the three values endpoints the client uses.
type fakeSheets struct {
	mu     sync.Mutex
	values [][]any
	calls  []string
	fail   bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		f.values = nil
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update")
		if f.fail {
			http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.URL.Query().Get("valueInputOption"); got != "RAW" {
			http.Error(w, "valueInputOption "+got, http.StatusBadRequest)
			return
		}
		f.values = body.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": len(body.Values)})
	case r.Method == http.MethodGet:
		f.calls = append(f.calls, "get")
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Transacciones!A1:L", "values": f.values})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if !errors.Is(err, ports.ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestNewMissingCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "x",
		CredentialsFile: t.TempDir() + "/missing.json",
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPushThenPull(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	ctx := context.Background()

	want := sampleTxs()
	if err := c.Push(ctx, want); err != nil {
		t.Fatalf("Push: %v", err)
	}
	got, err := c.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if diff := cmp.Diff(want, got, txCmp); diff != "" {
		t.Fatalf("pull mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"clear", "update", "get"}, f.calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
}

func TestPullEmptySheet(t *testing.T) {
	c := newTestClient(t, &fakeSheets{})
	got, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty ledger, got %d", len(got))
	}
}

func TestPushFailure(t *testing.T) {
	c := newTestClient(t, &fakeSheets{fail: true})
	if err := c.Push(context.Background(), sampleTxs()); err == nil {
		t.Fatal("expected push error")
	}
}

func TestPushKeepsUnreadableRows(t *testing.T) {
	broken := []any{"h1", "2025-03-01", "1.234,50", "ARS", "Hand typed", "Fran", "Familiar", "Gasto", "cash-fran", "", "", ""}
	shadowed := []any{"a2", "2025-03-02", "oops", "ARS", "", "Car", "Familiar", "Gasto", "cash-car", "", "", ""}
	good := sampleTxs()[0]

	f := &fakeSheets{}
	f.values = append(encodeRows([]core.Transaction{good}), broken, shadowed)
	c := newTestClient(t, f)
	ctx := context.Background()

	pulled, err := c.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if diff := cmp.Diff([]core.Transaction{good}, pulled, txCmp); diff != "" {
		t.Fatalf("pull mismatch (-want +got):\n%s", diff)
	}

	// A local change triggers a push; the broken row must survive it, while
	// the row whose id the local log owns is replaced by the local entry.
	local := append(pulled, sampleTxs()[1])
	if err := c.Push(ctx, local); err != nil {
		t.Fatalf("Push: %v", err)
	}

	f.mu.Lock()
	written := f.values
	f.mu.Unlock()
	if len(written) != len(local)+2 {
		t.Fatalf("want header, %d entries and 1 held row, got %d rows", len(local), len(written))
	}
	if diff := cmp.Diff(broken, written[len(written)-1]); diff != "" {
		t.Fatalf("held row changed (-want +got):\n%s", diff)
	}

	again, err := c.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if diff := cmp.Diff(local, again, txCmp); diff != "" {
		t.Fatalf("second pull mismatch (-want +got):\n%s", diff)
	}
}
