package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/carlmjohnson/be"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger/memory"
	"ledger/internal/log"
	"ledger/internal/report"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
	closed bool
}

func (f *fakePublisher) PublishEvent(_ context.Context, e *amqp.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: &bytes.Buffer{}})
}

func TestAddExpensePublishesAfterCommit(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), WithPublisher(pub), WithLogger(quietLogger()))

	e, err := svc.AddExpense(context.Background(), "food", 12.5, "january")
	be.NilErr(t, err)
	be.Equal(t, "Food", e.Category)

	be.Equal(t, 1, len(pub.events))
	be.Equal(t, amqp.EventExpenseAppended, pub.events[0].Type)
	be.Equal(t, e.ID, pub.events[0].ID)
}

func TestAddExpenseInvalidPublishesNothing(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), WithPublisher(pub), WithLogger(quietLogger()))

	_, err := svc.AddExpense(context.Background(), "food", 1, "Marchx")
	be.True(t, errors.Is(err, core.ErrUnknownMonth))
	be.Equal(t, 0, len(pub.events))
}

func TestPublishFailureDoesNotFailAppend(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	store := memory.New()
	svc := NewLedgerService(store, WithPublisher(pub), WithLogger(quietLogger()))

	_, err := svc.AddExpense(context.Background(), "rent", 500, "May")
	be.NilErr(t, err)
	be.Equal(t, 1, store.Len())
}

func TestSubmitAppliesFormRules(t *testing.T) {
	svc := NewLedgerService(memory.New(), WithLogger(quietLogger()))
	ctx := context.Background()

	tests := []struct {
		name     string
		category string
		amount   string
		month    string
		want     error
	}{
		{"blank category", "  ", "3", "May", core.ErrEmptyCategory},
		{"zero amount", "food", "0", "May", core.ErrZeroAmount},
		{"blank amount", "food", "", "May", core.ErrInvalidAmount},
		{"text amount", "food", "abc", "May", core.ErrInvalidAmount},
		{"negative amount", "food", "-2", "May", core.ErrNegativeAmount},
		{"bad month", "food", "2", "Smarch", core.ErrUnknownMonth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.category, tt.amount, tt.month)
			be.True(t, errors.Is(err, tt.want))
			be.True(t, errors.Is(err, core.ErrInvalidInput))
		})
	}

	e, err := svc.Submit(ctx, "coffee", "3,50", "june")
	be.NilErr(t, err)
	be.Equal(t, 3.5, e.Amount)
	be.Equal(t, "June", e.Month)
}

func TestReportCacheIsInvalidatedOnChange(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(),
		WithPublisher(pub),
		WithReportCache(time.Minute),
		WithLogger(quietLogger()))
	ctx := context.Background()

	rep, err := svc.Report(ctx)
	be.NilErr(t, err)
	be.True(t, rep.Empty())

	_, err = svc.AddExpense(ctx, "food", 10, "February")
	be.NilErr(t, err)
	rep, err = svc.Report(ctx)
	be.NilErr(t, err)
	be.Equal(t, 10.0, rep.Total)

	be.NilErr(t, svc.ClearAll(ctx))
	rep, err = svc.Report(ctx)
	be.NilErr(t, err)
	be.True(t, rep.Empty())

	be.Equal(t, 2, len(pub.events))
	be.Equal(t, amqp.EventLedgerCleared, pub.events[1].Type)
}

// blockingStore holds the first category aggregate until release is closed,
// after it has read the ledger.
type blockingStore struct {
	*memory.Store
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		Store:   memory.New(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingStore) AggregateByCategory(ctx context.Context) ([]core.CategoryTotal, error) {
	totals, err := s.Store.AggregateByCategory(ctx)
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return totals, err
}

func TestReportBuiltBeforeAppendIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := newBlockingStore()
	svc := NewLedgerService(store, WithReportCache(time.Minute), WithLogger(quietLogger()))

	first := make(chan report.Report)
	go func() {
		rep, _ := svc.Report(ctx)
		first <- rep
	}()
	<-store.started

	_, err := svc.AddExpense(ctx, "food", 10, "May")
	be.NilErr(t, err)
	close(store.release)
	be.Equal(t, 0.0, (<-first).Total)

	rep, err := svc.Report(ctx)
	be.NilErr(t, err)
	be.Equal(t, 10.0, rep.Total)
	be.Equal(t, 1, len(rep.ByCategory))
}

// cancelAwareStore fails reads once the caller's context is done.
type cancelAwareStore struct {
	*memory.Store
}

func (s cancelAwareStore) AggregateByCategory(ctx context.Context) ([]core.CategoryTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.AggregateByCategory(ctx)
}

func TestCachedReportIgnoresCallerCancellation(t *testing.T) {
	store := cancelAwareStore{memory.New()}
	_, err := store.Append(context.Background(), "food", 4, "May")
	be.NilErr(t, err)
	svc := NewLedgerService(store, WithReportCache(time.Minute), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := svc.Report(ctx)
	be.NilErr(t, err)
	be.Equal(t, 4.0, rep.Total)
}

type brokenStore struct {
	*memory.Store
}

var errDiskGone = core.StorageError("insert expense", errors.New("disk gone"))

func (brokenStore) Append(context.Context, string, float64, string) (core.Expense, error) {
	return core.Expense{}, errDiskGone
}

func (brokenStore) ClearAll(context.Context) error { return errDiskGone }

func TestStorageFailuresAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Format: "json", Output: &buf})
	pub := &fakePublisher{}
	svc := NewLedgerService(brokenStore{memory.New()}, WithPublisher(pub), WithLogger(logger))
	ctx := context.Background()

	_, err := svc.AddExpense(ctx, "food", 1, "May")
	be.True(t, errors.Is(err, core.ErrStorageUnavailable))
	be.True(t, errors.Is(svc.ClearAll(ctx), core.ErrStorageUnavailable))
	be.Equal(t, 0, len(pub.events))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	be.Equal(t, 2, len(lines))
	be.In(t, `"level":"ERROR"`, lines[0])
	be.In(t, `"operation":"append"`, lines[0])
	be.In(t, `"operation":"clear"`, lines[1])
	be.In(t, "disk gone", lines[1])
}

func TestInvalidInputIsNotLoggedAsFailure(t *testing.T) {
	var buf bytes.Buffer
	svc := NewLedgerService(memory.New(), WithLogger(log.New(log.Config{Format: "json", Output: &buf})))

	_, err := svc.AddExpense(context.Background(), "", 1, "May")
	be.True(t, errors.Is(err, core.ErrInvalidInput))
	be.Equal(t, "", buf.String())
}

func TestOnChangeHooks(t *testing.T) {
	svc := NewLedgerService(memory.New(), WithLogger(quietLogger()))
	calls := 0
	svc.OnChange(func(context.Context) { calls++ })

	ctx := context.Background()
	_, _ = svc.AddExpense(ctx, "food", 1, "May")
	_, _ = svc.AddExpense(ctx, "", 1, "May")
	_ = svc.ClearAll(ctx)
	be.Equal(t, 2, calls)
}

func TestCloseClosesPublisher(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), WithPublisher(pub), WithLogger(quietLogger()))
	be.NilErr(t, svc.Close())
	be.True(t, pub.closed)
	be.NilErr(t, svc.Ping(context.Background()))
}
