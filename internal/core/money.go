// Package core provides the ledger domain types and amount handling.
//
// This file contains functions for parsing amounts typed by a user and
// formatting stored amounts for display.
package core

import (
	"math"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
)

// DefaultCurrency is used for display when none is configured.
const DefaultCurrency = money.USD

// ParseAmount converts a user-typed decimal string to an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// surrounding whitespace. Signs, exponents, NaN and infinities are rejected;
// zero is accepted (the forms reject it separately).
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("-5")     -> 0, ErrNegativeAmount
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeAmount
	}
	if strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	if s == "." {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if err := ValidateAmount(v); err != nil {
		return 0, err
	}
	return v, nil
}

// ValidateAmount enforces the stored-amount invariant: a finite value >= 0.
func ValidateAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidAmount
	}
	if v < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// FormatAmount renders an amount in the single configured currency.
// Unknown currency codes fall back to DefaultCurrency.
func FormatAmount(amount float64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" || money.GetCurrency(code) == nil {
		code = DefaultCurrency
	}
	return money.NewFromFloat(amount, code).Display()
}
