package main

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"ledger/internal/core"
)

// expenseForm is the raw text the user typed.
type expenseForm struct {
	Category string
	Amount   string
	Month    string
}

// askExpenseForm runs the interactive entry form. Field checks match the
// web form so a valid answer is never rejected afterwards.
func askExpenseForm(months []string) (expenseForm, error) {
	var f expenseForm

	monthOpts := make([]huh.Option[string], len(months))
	for i, m := range months {
		monthOpts[i] = huh.NewOption(m, m)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Category").
				Placeholder("e.g. Food").
				Value(&f.Category).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("category is required")
					}
					return nil
				}),

			huh.NewInput().
				Title("Amount").
				Description("Decimal amount, dot or comma").
				Value(&f.Amount).
				Validate(func(s string) error {
					v, err := core.ParseAmount(s)
					if err != nil {
						return err
					}
					if v == 0 {
						return core.ErrZeroAmount
					}
					return nil
				}),

			huh.NewSelect[string]().
				Title("Month").
				Options(monthOpts...).
				Value(&f.Month),
		),
	)
	if err := form.Run(); err != nil {
		return expenseForm{}, err
	}
	return f, nil
}

func askConfirm(question string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}
