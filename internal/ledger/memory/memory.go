package memory

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps the ledger in process memory. Ids keep growing across ClearAll,
// like the SQLite backend.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Expense
}

func New() *Store {
	return &Store{nextID: 1}
}

// NewFromFile seeds the store from a file of "category,amount,month" lines.
// Missing files, blank lines, comments and invalid lines are skipped.
func NewFromFile(path string) *Store {
	s := New()
	for _, line := range readLines(path) {
		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			continue
		}
		amount, err := core.ParseAmount(parts[1])
		if err != nil {
			continue
		}
		_, _ = s.Append(context.Background(), parts[0], amount, parts[2])
	}
	return s
}

func (s *Store) Append(_ context.Context, category string, amount float64, month string) (core.Expense, error) {
	e, err := core.NewExpense(category, amount, month)
	if err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) FetchAll(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense{}, s.items...), nil
}

// AggregateByCategory returns totals in order of first appearance.
func (s *Store) AggregateByCategory(_ context.Context) ([]core.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := map[string]int{}
	out := []core.CategoryTotal{}
	for _, e := range s.items {
		i, ok := idx[e.Category]
		if !ok {
			i = len(out)
			idx[e.Category] = i
			out = append(out, core.CategoryTotal{Category: e.Category})
		}
		out[i].Total += e.Amount
	}
	return out, nil
}

// AggregateByMonth returns totals in order of first appearance.
func (s *Store) AggregateByMonth(_ context.Context) ([]core.MonthTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := map[string]int{}
	out := []core.MonthTotal{}
	for _, e := range s.items {
		i, ok := idx[e.Month]
		if !ok {
			i = len(out)
			idx[e.Month] = i
			out = append(out, core.MonthTotal{Month: e.Month})
		}
		out[i].Total += e.Amount
	}
	return out, nil
}

func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Count(_ context.Context) (int64, error) {
	return int64(s.Len()), nil
}

// Len returns the number of records; handy in tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
