// Package money converts between decimal currency amounts and the integer
// minor units (cents) stored in the ledger tables.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places of the currency minor unit.
const Places = 2

// MaxMinor is the largest amount, in minor units, a single movement or
// limit may carry.
const MaxMinor int64 = 1_000_000_000_000_000

// Parse reads a currency amount such as "60.00" or "12.5".
// Amounts with more than two decimal places are rejected rather than rounded.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !HasValidPrecision(d) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", s, Places)
	}
	return d, nil
}

// HasValidPrecision reports whether d is representable in minor units.
func HasValidPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Places))
}

// ToMinor converts an amount to minor units.
func ToMinor(d decimal.Decimal) (int64, error) {
	if !HasValidPrecision(d) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), Places)
	}
	scaled := d.Shift(Places)
	if !scaled.IsInteger() || scaled.Abs().GreaterThan(decimal.NewFromInt(MaxMinor)) {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return scaled.IntPart(), nil
}

// FromMinor converts minor units to an amount with two decimal places.
func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -Places)
}

// Format renders minor units as "%.2f".
func Format(v int64) string {
	return FromMinor(v).StringFixed(Places)
}

// FormatPtr renders an optional limit; nil renders as an empty string.
func FormatPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return Format(*v)
}
