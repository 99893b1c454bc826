package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/carlmjohnson/be"

	"ledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "expenses.db")
	repo, err := NewSQLiteRepository(context.Background(), path)
	be.NilErr(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	be.NilErr(t, repo.EnsureSchema(ctx))
	be.NilErr(t, repo.EnsureSchema(ctx))

	// Reopening an existing file must not fail either.
	again, err := NewSQLiteRepository(ctx, repo.path)
	be.NilErr(t, err)
	be.NilErr(t, again.Close())
}

func TestAppendThenFetchAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	all, err := repo.FetchAll(ctx)
	be.NilErr(t, err)
	be.Equal(t, 0, len(all))

	stored, err := repo.Append(ctx, "mcDonald's", 12.5, "march")
	be.NilErr(t, err)
	be.Equal(t, "McDonald's", stored.Category)
	be.Equal(t, "March", stored.Month)

	all, err = repo.FetchAll(ctx)
	be.NilErr(t, err)
	be.Equal(t, 1, len(all))
	be.Equal(t, stored, all[0])
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, "food", -5, "January")
	be.True(t, errors.Is(err, core.ErrInvalidInput))
	be.False(t, errors.Is(err, core.ErrStorageUnavailable))

	_, err = repo.Append(ctx, "", 5, "January")
	be.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = repo.Append(ctx, "food", 5, "Marchx")
	be.True(t, errors.Is(err, core.ErrInvalidInput))

	n, err := repo.Count(ctx)
	be.NilErr(t, err)
	be.Equal(t, int64(0), n)
}

func TestAggregateByCategorySums(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	amounts := []float64{1.5, 2.25, 10, 0}
	var want float64
	for _, a := range amounts {
		_, err := repo.Append(ctx, "food", a, "January")
		be.NilErr(t, err)
		want += a
	}
	_, err := repo.Append(ctx, "rent", 500, "February")
	be.NilErr(t, err)

	totals, err := repo.AggregateByCategory(ctx)
	be.NilErr(t, err)
	be.Equal(t, 2, len(totals))

	got := map[string]float64{}
	for _, ct := range totals {
		got[ct.Category] = ct.Total
	}
	be.Equal(t, want, got["Food"])
	be.Equal(t, 500.0, got["Rent"])
}

func TestAggregateByMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, in := range []struct {
		amount float64
		month  string
	}{
		{10, "February"},
		{5, "January"},
		{2, "february"},
	} {
		_, err := repo.Append(ctx, "food", in.amount, in.month)
		be.NilErr(t, err)
	}

	totals, err := repo.AggregateByMonth(ctx)
	be.NilErr(t, err)

	got := map[string]float64{}
	for _, mt := range totals {
		got[mt.Month] = mt.Total
	}
	be.DeepEqual(t, map[string]float64{"January": 5, "February": 12}, got)
}

func TestClearAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Clearing an empty ledger succeeds silently.
	be.NilErr(t, repo.ClearAll(ctx))

	first, err := repo.Append(ctx, "food", 3, "May")
	be.NilErr(t, err)
	_, err = repo.Append(ctx, "fuel", 4, "June")
	be.NilErr(t, err)

	be.NilErr(t, repo.ClearAll(ctx))

	all, err := repo.FetchAll(ctx)
	be.NilErr(t, err)
	be.Equal(t, 0, len(all))

	totals, err := repo.AggregateByCategory(ctx)
	be.NilErr(t, err)
	be.Equal(t, 0, len(totals))

	// Ids are never reused after a clear.
	next, err := repo.Append(ctx, "food", 1, "May")
	be.NilErr(t, err)
	be.True(t, next.ID > first.ID+1)
}

func TestSequentialAppendsNeverCollide(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seen := map[int64]bool{}
	var last int64
	for i := 0; i < 20; i++ {
		e, err := repo.Append(ctx, "food", float64(i), "July")
		be.NilErr(t, err)
		be.False(t, seen[e.ID])
		be.True(t, e.ID > last)
		seen[e.ID] = true
		last = e.ID
	}
}

func TestConcurrentAppends(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Append(ctx, "food", 1, "August"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent append: %v", err)
	}

	n, err := repo.Count(ctx)
	be.NilErr(t, err)
	be.Equal(t, int64(writers), n)
}

func TestClosedRepositoryReportsStorageUnavailable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	be.NilErr(t, repo.Close())

	_, err := repo.FetchAll(ctx)
	be.True(t, errors.Is(err, core.ErrStorageUnavailable))

	_, err = repo.Append(ctx, "food", 1, "May")
	be.True(t, errors.Is(err, core.ErrStorageUnavailable))

	be.True(t, errors.Is(repo.ClearAll(ctx), core.ErrStorageUnavailable))
}

func TestNewSQLiteRepositoryUnopenablePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	be.NilErr(t, os.WriteFile(file, []byte("x"), 0o644))
	taken := filepath.Join(dir, "taken.db")
	be.NilErr(t, os.Mkdir(taken, 0o755))

	tests := []struct {
		name string
		path string
	}{
		{"parent is a file", filepath.Join(file, "expenses.db")},
		{"path is a directory", taken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := NewSQLiteRepository(context.Background(), tt.path)
			be.True(t, errors.Is(err, core.ErrStorageUnavailable))
			be.True(t, repo == nil)
		})
	}
}
