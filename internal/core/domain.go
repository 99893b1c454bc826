package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Months lists the canonical month labels in calendar order.
var Months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

type (
	// Expense is one row of the ledger. Records are immutable once stored.
	Expense struct {
		ID       int64
		Category string
		Amount   float64
		Month    string
	}

	// CategoryTotal is the sum of all amounts recorded under a category.
	CategoryTotal struct {
		Category string
		Total    float64
	}

	// MonthTotal is the sum of all amounts recorded under a month label.
	MonthTotal struct {
		Month string
		Total float64
	}
)

// Capitalize trims surrounding whitespace and upper-cases the first rune.
// The rest of the string is left untouched ("mcDonald's" -> "McDonald's").
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// MonthIndex returns the 1-based calendar position of a canonical label.
func MonthIndex(label string) (int, bool) {
	for i, m := range Months {
		if m == label {
			return i + 1, true
		}
	}
	return 0, false
}

// ParseMonth normalizes s and checks it against the canonical labels.
func ParseMonth(s string) (string, error) {
	m := Capitalize(s)
	if _, ok := MonthIndex(m); !ok {
		return "", ErrUnknownMonth
	}
	return m, nil
}

// NewExpense validates and normalizes the raw input of an append.
// The returned record has no ID yet; the store assigns it.
func NewExpense(category string, amount float64, month string) (Expense, error) {
	cat := Capitalize(category)
	if cat == "" {
		return Expense{}, ErrEmptyCategory
	}
	if err := ValidateAmount(amount); err != nil {
		return Expense{}, err
	}
	m, err := ParseMonth(month)
	if err != nil {
		return Expense{}, err
	}
	return Expense{Category: cat, Amount: amount, Month: m}, nil
}

// Validate checks an already-normalized record.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if _, ok := MonthIndex(e.Month); !ok {
		return ErrUnknownMonth
	}
	return nil
}

// ValidateSubmission applies the stricter rules of the input forms on top of
// NewExpense: a submitted amount must be greater than zero.
func ValidateSubmission(category string, amount float64, month string) (Expense, error) {
	e, err := NewExpense(category, amount, month)
	if err != nil {
		return Expense{}, err
	}
	if e.Amount == 0 {
		return Expense{}, ErrZeroAmount
	}
	return e, nil
}
