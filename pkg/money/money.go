// Package money converts between shopper-facing decimal amounts and the
// integer minor units every price is stored in.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const minorUnitExponent = 2

// ToMinorUnits converts a decimal amount to minor units, rounding half-up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(minorUnitExponent).Round(0).IntPart()
}

// ParseMinorUnits parses a decimal string such as "19.99" into minor units.
func ParseMinorUnits(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return ToMinorUnits(amount), nil
}

// FromMinorUnits returns the decimal amount for a minor-unit value.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -minorUnitExponent)
}

// Format renders minor units as a fixed two-place decimal string.
func Format(cents int64) string {
	return FromMinorUnits(cents).StringFixed(minorUnitExponent)
}

// FormatPtr renders an optional amount, returning nil when absent.
func FormatPtr(cents *int64) *string {
	if cents == nil {
		return nil
	}
	out := Format(*cents)
	return &out
}
