package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ledger/internal/charts"
	"ledger/internal/services"
)

var errNoData = errors.New("no data to plot")

func newChartCmd(a *app) *cobra.Command {
	var (
		kind   string
		out    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render a chart to a file",
		Long: `Render one chart of the ledger. Kinds: bar (per category), pie (category distribution), monthly.

The image format follows the file extension unless --format is given.`,
		Example: `  ledgerctl chart --kind pie --out spending.svg
  ledgerctl chart --kind monthly --out months.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := charts.ParseKind(kind)
			if err != nil {
				return err
			}
			if out == "" {
				return errors.New("--out is required")
			}
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(out), ".")
			}
			f, err := charts.ParseFormat(format)
			if err != nil {
				return err
			}

			return a.withLedger(cmd.Context(), func(svc *services.LedgerService) error {
				rep, err := svc.Report(cmd.Context())
				if err != nil {
					return fmt.Errorf("build report: %w", err)
				}
				var buf bytes.Buffer
				if err := charts.Render(&buf, rep, k, f); err != nil {
					if errors.Is(err, charts.ErrNoData) {
						return errNoData
					}
					return fmt.Errorf("render chart: %w", err)
				}
				if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write chart: %w", err)
				}
				_, err = fmt.Fprintf(a.out, "Wrote %s chart to %s\n", k, out)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "bar", "chart kind: bar, pie or monthly")
	cmd.Flags().StringVar(&out, "out", "", "output file")
	cmd.Flags().StringVar(&format, "format", "", "png or svg (default from --out extension)")
	return cmd
}
