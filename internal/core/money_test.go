package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.005", true}, // kept as typed
		{" 2.50 ", "2.5", true},
		{".5", "0.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0,00", "", false},
		{"abc", "", false},
		{"1e3", "", false},
		{"1.2.3", "", false},
		{"1.000,50", "", false},
		{"", "", false},
		{".", "", false},
		{"١٢", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			want := decimal.RequireFromString(tc.out)
			if err != nil || !got.Equal(want) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestRound2(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"1.004":   "1",
		"-1.005":  "-1.01",
		"333.335": "333.34",
		"10":      "10",
	}
	for in, want := range cases {
		got := Round2(decimal.RequireFromString(in))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("Round2(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestShare(t *testing.T) {
	amount := decimal.NewFromInt(1200)
	if got := Share(amount, 3); !got.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected 400, got %s", got)
	}
	for _, n := range []int{-1, 0, 1} {
		if got := Share(amount, n); !got.Equal(amount) {
			t.Fatalf("n=%d expected amount unchanged, got %s", n, got)
		}
	}
	// Shares of an uneven split add back up to the total after rounding.
	third := Share(decimal.NewFromInt(100), 3)
	if sum := Round2(third.Mul(decimal.NewFromInt(3))); !sum.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100, got %s", sum)
	}
}
