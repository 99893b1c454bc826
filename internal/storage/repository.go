package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the expenses table. Construct it once and pass it to
// every caller; it holds no package-level state.
type SQLiteRepository struct {
	db      *sql.DB
	path    string
	queries *Queries
}

// dsn adds the pragmas every connection needs: writers from several processes
// wait on the lock instead of failing, and readers do not block writers.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewSQLiteRepository opens the database at dbPath and ensures the schema.
// Every failure is reported as core.ErrStorageUnavailable.
func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, core.StorageError("create db directory", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, core.StorageError("open sqlite database", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.StorageError("ping database", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		path:    dbPath,
		queries: New(db),
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.StorageError("ping database", err)
	}
	return nil
}

// EnsureSchema creates the expenses table if it is absent. It is a no-op when
// the schema is already current.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	if err := RunMigrations(r.path); err != nil {
		return core.StorageError("ensure schema", err)
	}
	slog.DebugContext(ctx, "Schema ensured", "path", r.path)
	return nil
}

// Append validates and normalizes the input, then stores it in its own
// transaction. Invalid input never reaches the database.
func (r *SQLiteRepository) Append(ctx context.Context, category string, amount float64, month string) (core.Expense, error) {
	e, err := core.NewExpense(category, amount, month)
	if err != nil {
		return core.Expense{}, err
	}

	var row Expense
	err = r.withTx(ctx, "append expense", func(q *Queries) error {
		var err error
		row, err = q.CreateExpense(ctx, CreateExpenseParams{
			Category: e.Category,
			Amount:   e.Amount,
			Month:    e.Month,
		})
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", row.ID,
		"category", row.Category,
		"amount", row.Amount,
		"month", row.Month)

	return toCore(row), nil
}

// FetchAll returns every stored record in insertion order. An empty ledger
// yields an empty slice.
func (r *SQLiteRepository) FetchAll(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, core.StorageError("list expenses", err)
	}

	expenses := make([]core.Expense, len(rows))
	for i, e := range rows {
		expenses[i] = toCore(e)
	}
	return expenses, nil
}

// AggregateByCategory sums amounts per category present in the ledger.
func (r *SQLiteRepository) AggregateByCategory(ctx context.Context) ([]core.CategoryTotal, error) {
	sums, err := r.queries.GetCategorySums(ctx)
	if err != nil {
		return nil, core.StorageError("get category sums", err)
	}

	totals := make([]core.CategoryTotal, len(sums))
	for i, s := range sums {
		totals[i] = core.CategoryTotal{Category: s.Category, Total: s.Total}
	}
	return totals, nil
}

// AggregateByMonth sums amounts per month label present in the ledger, in no
// particular order.
func (r *SQLiteRepository) AggregateByMonth(ctx context.Context) ([]core.MonthTotal, error) {
	sums, err := r.queries.GetMonthSums(ctx)
	if err != nil {
		return nil, core.StorageError("get month sums", err)
	}

	totals := make([]core.MonthTotal, len(sums))
	for i, s := range sums {
		totals[i] = core.MonthTotal{Month: s.Month, Total: s.Total}
	}
	return totals, nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountExpenses(ctx)
	if err != nil {
		return 0, core.StorageError("count expenses", err)
	}
	return n, nil
}

// ClearAll deletes every record at once. Clearing an empty ledger succeeds.
func (r *SQLiteRepository) ClearAll(ctx context.Context) error {
	var removed int64
	err := r.withTx(ctx, "clear expenses", func(q *Queries) error {
		var err error
		removed, err = q.DeleteAllExpenses(ctx)
		return err
	})
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Expenses deleted from SQLite", "removed", removed)
	return nil
}

// withTx runs fn in a transaction and rolls back on any error.
func (r *SQLiteRepository) withTx(ctx context.Context, op string, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StorageError(op+": begin", err)
	}

	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "operation", op, "error", rbErr)
		}
		return core.StorageError(op, err)
	}

	if err := tx.Commit(); err != nil {
		return core.StorageError(fmt.Sprintf("%s: commit", op), err)
	}
	return nil
}

func toCore(e Expense) core.Expense {
	return core.Expense{
		ID:       e.ID,
		Category: e.Category,
		Amount:   e.Amount,
		Month:    e.Month,
	}
}
