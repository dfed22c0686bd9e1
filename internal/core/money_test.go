package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateCurrency(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"CZK", true},
		{"USD", true},
		{"EUR", true},
		{"usd", false},
		{"US", false},
		{"USDT", false},
		{"QQQ", false},
	}
	for _, tc := range cases {
		err := ValidateCurrency("currency", tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
	if got := NormalizeCurrency(" czk "); got != "CZK" {
		t.Fatalf("expected CZK, got %q", got)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.RequireFromString("1234.5"), "USD"); got != "$1,234.50" {
		t.Fatalf("expected $1,234.50, got %q", got)
	}
	if got := FormatAmount(decimal.RequireFromString("3"), "ZZZ"); got != "3 ZZZ" {
		t.Fatalf("expected fallback rendering, got %q", got)
	}
}
