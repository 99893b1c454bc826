package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/report"
	"ledger/internal/services"
)

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputFormat, err := validateOutputFormat(cmd)
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(svc *services.LedgerService) error {
				items, err := svc.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list expenses: %w", err)
				}
				if outputFormat == jsonOutputFormat {
					out := make([]expenseJSON, 0, len(items))
					for _, e := range items {
						out = append(out, toExpenseJSON(e))
					}
					return a.outputJSON(out)
				}
				if len(items) == 0 {
					_, err := fmt.Fprintln(a.out, "No data yet.")
					return err
				}
				return a.outputExpensesTable(items)
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

type totalJSON struct {
	Label string  `json:"label"`
	Total float64 `json:"total"`
}

const (
	summaryByCategory = "category"
	summaryByMonth    = "month"
)

func newSummaryCmd(a *app) *cobra.Command {
	var (
		by     string
		sorted bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize expenses by category or month",
		Long: `Print the total per category, in order of first appearance, or per month in calendar order.

Month labels that are not calendar months are left out of the month view.`,
		Example: `  ledgerctl summary
  ledgerctl summary --by month -o json
  ledgerctl summary --sort`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputFormat, err := validateOutputFormat(cmd)
			if err != nil {
				return err
			}
			if by != summaryByCategory && by != summaryByMonth {
				return fmt.Errorf("invalid --by %q: must be %s or %s", by, summaryByCategory, summaryByMonth)
			}

			return a.withLedger(cmd.Context(), func(svc *services.LedgerService) error {
				rep, err := svc.Report(cmd.Context())
				if err != nil {
					return fmt.Errorf("build summary: %w", err)
				}
				rows := summaryRows(rep, by, sorted)

				if outputFormat == jsonOutputFormat {
					return a.outputJSON(rows)
				}
				if len(rows) == 0 {
					_, err := fmt.Fprintln(a.out, "No data to summarize.")
					return err
				}
				return a.outputSummaryTable(by, rows, rep.Total)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", summaryByCategory, "group by category or month")
	cmd.Flags().BoolVar(&sorted, "sort", false, "sort categories by total, largest first")
	addOutputFlag(cmd)
	return cmd
}

func summaryRows(rep report.Report, by string, sorted bool) []totalJSON {
	rows := []totalJSON{}
	if by == summaryByMonth {
		for _, m := range rep.ByMonth {
			rows = append(rows, totalJSON{Label: m.Month, Total: m.Total})
		}
		return rows
	}
	cats := rep.ByCategory
	if sorted {
		cats = report.SortByTotal(cats)
	}
	for _, c := range cats {
		rows = append(rows, totalJSON{Label: c.Category, Total: c.Total})
	}
	return rows
}

func (a *app) outputSummaryTable(by string, rows []totalJSON, total float64) error {
	header := "CATEGORY"
	if by == summaryByMonth {
		header = "MONTH"
	}
	t := createStyledTable(header, "TOTAL")
	for _, r := range rows {
		t.Row(r.Label, core.FormatAmount(r.Total, a.currency()))
	}
	t.Row("ALL", core.FormatAmount(total, a.currency()))
	_, err := fmt.Fprintln(a.out, t)
	return err
}
