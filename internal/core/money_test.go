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
		{"-12,50", "-12.5", true},
		{"-12,50 €", "-12.5", true},
		{"+45.10", "45.1", true},
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"1.234.567", "1234567", true},
		{"1,234,567", "1234567", true},
		{"-1 234,56 EUR", "-1234.56", true},
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{"abc", "", false},
		{"", "", false},
		{"€", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q unexpected error: %v", tc.in, err)
			}
			want := decimal.RequireFromString(tc.out)
			if !got.Equal(want) {
				t.Fatalf("%q expected %s, got %s", tc.in, want, got)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestLooksNumeric(t *testing.T) {
	cases := map[string]bool{
		"12.50":     true,
		"-1,234.00": true,
		"€ 40":      true,
		"mercadona": false,
		"":          false,
		"2025-01-05": false,
	}
	for in, want := range cases {
		if got := LooksNumeric(in); got != want {
			t.Errorf("LooksNumeric(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRoundAndCents(t *testing.T) {
	if got := Round2(decimal.RequireFromString("10.005")); !got.Equal(decimal.RequireFromString("10.01")) {
		t.Fatalf("Round2 = %s", got)
	}
	if got := ToCents(decimal.RequireFromString("-12.345")); got != -1235 {
		t.Fatalf("ToCents = %d, want -1235", got)
	}
}
