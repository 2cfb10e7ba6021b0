// Package core provides cost parsing and formatting utilities.
//
// Costs are held as decimal.Decimal so totals never accumulate
// floating-point drift.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseCost converts a decimal string to a cost.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Negative values
// parse fine: the sign is not validated.
//
// Examples:
//
//	ParseCost("15.99") -> 15.99, nil
//	ParseCost("15,99") -> 15.99, nil
//	ParseCost("abc")   -> 0, ErrInvalidCost
func ParseCost(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidCost
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidCost
	}
	return d, nil
}

// ParseStoredCost parses a persisted cost. Stored values are always written
// with a dot separator, so anything else, a comma included, is ErrInvalidCost.
func ParseStoredCost(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, ",eE") {
		return decimal.Zero, ErrInvalidCost
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidCost
	}
	return d, nil
}

// ParseDay converts a textual billing day to its integer form.
func ParseDay(s string) (int, error) {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrInvalidDay
	}
	return d, nil
}

// FormatCost renders a cost with two decimals for display.
func FormatCost(d decimal.Decimal) string {
	return d.StringFixed(2)
}
