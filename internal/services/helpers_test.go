package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"brunance/internal/accounts"
	"brunance/internal/core"
	"brunance/internal/storage"
)

var testSeq int

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nextID() string {
	testSeq++
	return fmt.Sprintf("svc-%d", testSeq)
}

func income(payer core.Member, account, amount string, at time.Time) core.Transaction {
	return core.Transaction{
		ID: nextID(), Amount: amt(amount), Currency: core.CurrencyARS, OccurredAt: at,
		Payer: payer, Nature: core.NatureIncome, SourceAccountID: account,
	}
}

func expense(payer core.Member, b core.Beneficiary, account, amount string, at time.Time) core.Transaction {
	return core.Transaction{
		ID: nextID(), Amount: amt(amount), Currency: core.CurrencyARS, OccurredAt: at,
		Payer: payer, Beneficiary: b, Nature: core.NatureExpense, SourceAccountID: account,
	}
}

type publishCall struct {
	reason   string
	revision uint64
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (p *fakePublisher) PublishSyncRequest(_ context.Context, reason string, revision uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{reason, revision})
	return p.err
}

func (p *fakePublisher) reasons() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.reason
	}
	return out
}

// fixedNow is the clock of every test service.
var fixedNow = time.Date(2025, time.March, 20, 15, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, seed ...core.Transaction) (*LedgerService, *storage.MemoryRepository, *fakePublisher) {
	t.Helper()
	repo := storage.NewMemoryRepository(seed...)
	pub := &fakePublisher{}
	svc, err := NewLedgerService(context.Background(), accounts.Default(), repo, pub, LedgerConfig{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	return svc, repo, pub
}

func mustSubmit(t *testing.T, s *LedgerService, tx core.Transaction) core.Transaction {
	t.Helper()
	got, err := s.Submit(context.Background(), tx)
	if err != nil {
		t.Fatalf("Submit(%s): %v", tx.ID, err)
	}
	return got
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
