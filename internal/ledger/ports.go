// Package ledger defines the ports every ledger backend implements.
package ledger

import (
	"context"

	"ledger/internal/core"
)

type (
	// Writer appends one record. Implementations normalize the input and
	// return core.ErrInvalidInput without storing anything when it is invalid.
	Writer interface {
		Append(ctx context.Context, category string, amount float64, month string) (core.Expense, error)
	}

	// Lister returns every stored record in insertion order.
	Lister interface {
		FetchAll(ctx context.Context) ([]core.Expense, error)
	}

	// Aggregator provides the grouped sums the reports are built from.
	Aggregator interface {
		AggregateByCategory(ctx context.Context) ([]core.CategoryTotal, error)
		AggregateByMonth(ctx context.Context) ([]core.MonthTotal, error)
	}

	// Clearer empties the ledger.
	Clearer interface {
		ClearAll(ctx context.Context) error
	}

	// Counter reports how many records are stored.
	Counter interface {
		Count(ctx context.Context) (int64, error)
	}

	// Pinger reports backend health.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	Store interface {
		Writer
		Lister
		Aggregator
		Clearer
	}
)
