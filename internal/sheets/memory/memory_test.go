package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"brunance/internal/core"
)

func TestRemotePushPull(t *testing.T) {
	ctx := context.Background()
	r := New(core.Transaction{ID: "a", Amount: decimal.NewFromInt(1)})

	got, err := r.Pull(ctx)
	if err != nil || len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Pull: %v %+v", err, got)
	}
	got[0].ID = "mutated"

	if err := r.Push(ctx, []core.Transaction{{ID: "b"}, {ID: "c"}}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	got, _ = r.Pull(ctx)
	if len(got) != 2 || got[0].ID != "b" {
		t.Fatalf("after push: %+v", got)
	}
	if pulls, pushes := r.Calls(); pulls != 2 || pushes != 1 {
		t.Fatalf("calls: pulls=%d pushes=%d", pulls, pushes)
	}
}

func TestRemoteErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	r := New()
	r.PullErr = boom
	if _, err := r.Pull(ctx); !errors.Is(err, boom) {
		t.Fatalf("Pull: got %v", err)
	}
	r.PushErr = boom
	if err := r.Push(ctx, nil); !errors.Is(err, boom) {
		t.Fatalf("Push: got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := New().Pull(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled Pull: got %v", err)
	}
}
