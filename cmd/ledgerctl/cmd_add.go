package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/services"
)

type expenseJSON struct {
	ID       int64   `json:"id"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Month    string  `json:"month"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{ID: e.ID, Category: e.Category, Amount: e.Amount, Month: e.Month}
}

func newAddCmd(a *app) *cobra.Command {
	var f expenseForm
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an expense",
		Long: `Add one expense. Without --category, --amount and --month an interactive form is shown.

The category is capitalized and the amount must be greater than zero.`,
		Example: `  ledgerctl add --category food --amount 12.50 --month January
  ledgerctl add`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputFormat, err := validateOutputFormat(cmd)
			if err != nil {
				return err
			}

			if f.Category == "" && f.Amount == "" && f.Month == "" {
				f, err = a.askExpense(core.Months[:])
				if err != nil {
					return err
				}
			}

			return a.withLedger(cmd.Context(), func(svc *services.LedgerService) error {
				e, err := svc.Submit(cmd.Context(), f.Category, f.Amount, f.Month)
				if err != nil {
					return fmt.Errorf("add expense: %w", err)
				}
				if outputFormat == jsonOutputFormat {
					return a.outputJSON(toExpenseJSON(e))
				}
				return a.outputExpensesTable([]core.Expense{e})
			})
		},
	}
	cmd.Flags().StringVarP(&f.Category, "category", "c", "", "expense category")
	cmd.Flags().StringVarP(&f.Amount, "amount", "a", "", "amount, e.g. 12.50 or 12,50")
	cmd.Flags().StringVarP(&f.Month, "month", "m", "", "month name, e.g. January")
	addOutputFlag(cmd)
	return cmd
}

func (a *app) outputExpensesTable(items []core.Expense) error {
	t := createStyledTable("ID", "CATEGORY", "AMOUNT", "MONTH")
	var total float64
	for _, e := range items {
		t.Row(strconv.FormatInt(e.ID, 10), e.Category, core.FormatAmount(e.Amount, a.currency()), e.Month)
		total += e.Amount
	}
	if len(items) > 1 {
		t.Row("", "TOTAL", core.FormatAmount(total, a.currency()), "")
	}
	_, err := fmt.Fprintln(a.out, t)
	return err
}
