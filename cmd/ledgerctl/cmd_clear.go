package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/services"
)

var errAborted = errors.New("aborted")

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := a.confirm("Delete every stored expense?")
				if err != nil {
					return err
				}
				if !ok {
					return errAborted
				}
			}
			return a.withLedger(cmd.Context(), func(svc *services.LedgerService) error {
				if err := svc.ClearAll(cmd.Context()); err != nil {
					return fmt.Errorf("clear ledger: %w", err)
				}
				_, err := fmt.Fprintln(a.out, "Ledger cleared.")
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and apply migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withLedger(cmd.Context(), func(svc *services.LedgerService) error {
				if err := svc.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("check storage: %w", err)
				}
				n, err := svc.Count(cmd.Context())
				if err != nil {
					return fmt.Errorf("count expenses: %w", err)
				}
				_, err = fmt.Fprintf(a.out, "Ledger ready (%d expenses).\n", n)
				return err
			})
		},
	}
}
