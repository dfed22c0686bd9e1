// Package core provides money validation and display utilities.
//
// Amounts are fixed-point decimals; currencies are ISO 4217 codes checked
// against the go-money currency table.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return NewValidationError(field, "must be greater than 0")
	}
	return nil
}

// NormalizeCurrency trims and upper-cases a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrency accepts only 3-letter uppercase ISO 4217 codes known to
// the currency table.
func ValidateCurrency(field, code string) error {
	if len(code) != 3 || strings.ToUpper(code) != code {
		return NewValidationError(field, "must be 3-letter ISO code")
	}
	if money.GetCurrency(code) == nil {
		return NewValidationError(field, "unknown currency %q", code)
	}
	return nil
}

// FormatAmount renders an amount in the currency's display format, e.g.
// "$1,234.50". Amounts are rounded to the currency's minor unit for display
// only.
func FormatAmount(d decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return d.String() + " " + currency
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}
