package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"brunance/internal/core"
	ports "brunance/internal/sheets"
)

func TestNewRequiresURL(t *testing.T) {
	if _, err := New("  ", nil); !errors.Is(err, ports.ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
}

func TestPullAcceptsNumbersAndStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		io.WriteString(w, `[
			{"id":"a","amount":1200.5,"currency":"ARS","date":"2025-03-04T10:00:00-03:00","payer":"Fran","type":"Familiar","nature":"Gasto","paymentMethodId":"CASH-FRAN","synced":false},
			{"id":"b","amount":"99.99","currency":"USD","date":"2025-03-05T10:00:00Z","payer":"Car","nature":"Ingreso","paymentMethodId":"cash-car","synced":true},
			{"id":"","amount":1,"currency":"ARS"}
		]`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 transactions, got %d", len(got))
	}
	if !got[0].Amount.Equal(decimal.RequireFromString("1200.5")) || !got[1].Amount.Equal(decimal.RequireFromString("99.99")) {
		t.Fatalf("amounts: %s %s", got[0].Amount, got[1].Amount)
	}
	if !got[0].Synced || got[0].SourceAccountID != "CASH-FRAN" {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
}

func TestPullEnvelopeAndEmpty(t *testing.T) {
	bodies := map[string]int{
		`{"transactions":[{"id":"x","amount":"5"}]}`: 1,
		``:   0,
		`[]`: 0,
	}
	for body, want := range bodies {
		got, err := decode([]byte(body))
		if err != nil {
			t.Fatalf("decode(%q): %v", body, err)
		}
		if len(got) != want {
			t.Fatalf("decode(%q): got %d entries, want %d", body, len(got), want)
		}
	}
	if _, err := decode([]byte(`<html>`)); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestPullStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, nil)
	if _, err := c.Pull(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPushSendsWholeLog(t *testing.T) {
	var received []core.Transaction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, nil)
	txs := []core.Transaction{{ID: "a", Amount: decimal.RequireFromString("10.25"), Currency: core.CurrencyARS}}
	if err := c.Push(context.Background(), txs); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(received) != 1 || !received[0].Amount.Equal(txs[0].Amount) {
		t.Fatalf("received %+v", received)
	}

	if err := c.Push(context.Background(), nil); err != nil {
		t.Fatalf("Push(nil): %v", err)
	}
	if received == nil || len(received) != 0 {
		t.Fatalf("empty push should send [], got %+v", received)
	}
}

func TestPushStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, nil)
	if err := c.Push(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}
