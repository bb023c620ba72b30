package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the precision amounts are stored with
const AmountPlaces = 8

// Round normalizes an amount to storage precision
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// ParseAmount parses a stored or user-supplied amount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// FormatAmount renders an amount for storage
func FormatAmount(d decimal.Decimal) string {
	return Round(d).StringFixed(AmountPlaces)
}
