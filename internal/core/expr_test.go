package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEvalAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2500", "2500"},
		{"2500+800", "3300"},
		{" 100 - 25,5 ", "74.5"},
		{"2*3+4", "10"},
		{"2*(3+4)", "14"},
		{"(1200,50 - 200) / 2", "500.25"},
		{"100/3", "33.33"},
		{"-5+10", "5"},
		{"--3", "3"},
		{"((((7))))", "7"},
		{"0.005*1", "0.01"},
	}
	for _, tc := range cases {
		got, err := EvalAmount(tc.in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if want := decimal.RequireFromString(tc.want); !got.Equal(want) {
			t.Fatalf("%q: got %s want %s", tc.in, got, want)
		}
	}
}

func TestEvalAmountRejects(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"abc",
		"1+",
		"(1+2",
		"1+2)",
		"1/0",
		"5/(2-2)",
		"3-5",
		"0",
		"1..2",
		"1.2.3",
		"2^3",
		"os.Exit(1)",
		"1e10",
		".",
		strings.Repeat("(", 40) + "1" + strings.Repeat(")", 40),
		strings.Repeat("1+", 200) + "1",
	}
	for _, in := range cases {
		_, err := EvalAmount(in)
		if !errors.Is(err, ErrMalformedAmount) {
			t.Fatalf("%q: expected ErrMalformedAmount, got %v", in, err)
		}
	}
}
