package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/services"
)

const (
	jsonOutputFormat  = "json"
	tableOutputFormat = "table"
)

// app carries what the commands need, so tests can swap the ledger and the
// interactive prompts.
type app struct {
	out io.Writer

	// open returns the ledger service; the caller closes it.
	open     func(ctx context.Context) (*services.LedgerService, error)
	currency func() string

	askExpense func(months []string) (expenseForm, error)
	confirm    func(question string) (bool, error)

	backend string
	dbPath  string
	debug   bool
}

func newApp() *app {
	a := &app{
		out:        os.Stdout,
		askExpense: askExpenseForm,
		confirm:    askConfirm,
	}
	a.open = a.openFromEnv
	a.currency = func() string { return os.Getenv("CURRENCY") }
	return a
}

// openFromEnv reads the same settings as the server; --backend and --db win
// over the environment.
func (a *app) openFromEnv(ctx context.Context) (*services.LedgerService, error) {
	cli.LoadEnvFile()
	if a.backend != "" {
		_ = os.Setenv("DATA_BACKEND", a.backend)
	}
	if a.dbPath != "" {
		_ = os.Setenv("SQLITE_DB_PATH", a.dbPath)
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if a.debug {
		level = slog.LevelDebug
	}
	// Logs go to stderr so JSON output stays clean.
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
	a.currency = func() string { return cfg.Currency }
	return cli.OpenLedger(ctx, cfg, logger, true)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Record and summarize expenses",
		Long:          `Add expenses to the ledger, list them, summarize them by category or month and render charts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVar(&a.backend, "backend", "", "storage backend: sqlite or memory (default from DATA_BACKEND)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default from SQLITE_DB_PATH)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newAddCmd(a),
		newListCmd(a),
		newSummaryCmd(a),
		newChartCmd(a),
		newClearCmd(a),
		newInitCmd(a),
	)
	return root
}

// withLedger opens the ledger for one command and always closes it.
func (a *app) withLedger(ctx context.Context, fn func(*services.LedgerService) error) (err error) {
	svc, err := a.open(ctx)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		err = errors.Join(err, svc.Close())
	}()
	return fn(svc)
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", tableOutputFormat, "Output format: table or json")
}

func validateOutputFormat(cmd *cobra.Command) (string, error) {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", err
	}
	if format != jsonOutputFormat && format != tableOutputFormat {
		return "", fmt.Errorf("invalid output format %q: must be %s or %s", format, tableOutputFormat, jsonOutputFormat)
	}
	return format, nil
}

func (a *app) outputJSON(data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(jsonData))
	return err
}

func createStyledTable(headers ...string) *table.Table {
	var (
		purple    = lipgloss.Color("99")
		gray      = lipgloss.Color("245")
		lightGray = lipgloss.Color("241")

		headerStyle  = lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
		cellStyle    = lipgloss.NewStyle().Padding(0, 1)
		oddRowStyle  = cellStyle.Foreground(gray)
		evenRowStyle = cellStyle.Foreground(lightGray)
	)

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return evenRowStyle
			default:
				return oddRowStyle
			}
		}).
		Headers(headers...)
}
