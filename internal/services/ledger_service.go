// Package services orchestrates the ledger store, report building and event
// publishing behind the operations the front ends expose.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/report"
)

// Publisher sends ledger change events. *amqp.Client satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

const reportKey = "report"

// LedgerService saves to the store first and publishes afterwards. Publish
// failures are logged and never fail the call; the store is authoritative.
type LedgerService struct {
	store     ledger.Store
	publisher Publisher
	builder   *report.Builder
	reports   *cache.LRUCache[report.Report]
	logger    *log.Logger
	onChange  []func(context.Context)
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithPublisher enables change events. A nil publisher leaves them off.
func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithReportCache caches built reports for ttl; changes purge the cache.
func WithReportCache(ttl time.Duration) Option {
	return func(s *LedgerService) {
		if ttl > 0 {
			s.reports = cache.NewLRUCache[report.Report](1, ttl)
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReportOptions changes how reports are laid out.
func WithReportOptions(o report.Options) Option {
	return func(s *LedgerService) {
		s.builder = report.NewBuilder(s.store, o)
	}
}

func NewLedgerService(store ledger.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:   store,
		builder: report.NewBuilder(store, report.Options{}),
		logger:  log.New(log.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	return s
}

// OnChange registers fn to run after every committed append or clear.
func (s *LedgerService) OnChange(fn func(context.Context)) {
	s.onChange = append(s.onChange, fn)
}

// ReportCache exposes the report cache so it can be registered for expiry.
// It is nil when caching is off.
func (s *LedgerService) ReportCache() *cache.LRUCache[report.Report] {
	return s.reports
}

// AddExpense stores one record. Zero amounts are accepted here; use Submit
// for the form rules.
func (s *LedgerService) AddExpense(ctx context.Context, category string, amount float64, month string) (core.Expense, error) {
	e, err := s.store.Append(ctx, category, amount, month)
	if err != nil {
		s.logFailure(ctx, "Append failed", err, log.OpAppend)
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}

	log.NewStructuredLogger(s.logger).LogExpenseAppended(ctx, e.ID, e.Category, e.Amount, e.Month)
	s.changed(ctx, amqp.NewAppendedEvent(e))
	return e, nil
}

// Submit applies the entry form rules to raw input and stores the record.
// It rejects a blank category and an amount that is missing, non-numeric,
// negative or zero.
func (s *LedgerService) Submit(ctx context.Context, category, amountText, month string) (core.Expense, error) {
	amount, err := core.ParseAmount(amountText)
	if err != nil {
		return core.Expense{}, err
	}
	if _, err := core.ValidateSubmission(category, amount, month); err != nil {
		return core.Expense{}, err
	}
	return s.AddExpense(ctx, category, amount, month)
}

func (s *LedgerService) List(ctx context.Context) ([]core.Expense, error) {
	return s.store.FetchAll(ctx)
}

// Report returns the presentation-ready summary, from cache when possible.
func (s *LedgerService) Report(ctx context.Context) (report.Report, error) {
	if s.reports == nil {
		return s.builder.Build(ctx)
	}
	// The load is shared with other callers, so one caller going away
	// must not cancel it.
	shared := context.WithoutCancel(ctx)
	return s.reports.GetOrLoad(reportKey, func() (report.Report, error) {
		return s.builder.Build(shared)
	})
}

// ClearAll empties the ledger.
func (s *LedgerService) ClearAll(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		s.logFailure(ctx, "Clear failed", err, log.OpClear)
		return fmt.Errorf("clear ledger: %w", err)
	}
	s.logger.InfoContext(ctx, "Ledger cleared", log.FieldOperation, log.OpClear)
	s.changed(ctx, amqp.NewClearedEvent())
	return nil
}

// Count returns the number of stored records.
func (s *LedgerService) Count(ctx context.Context) (int64, error) {
	if c, ok := s.store.(ledger.Counter); ok {
		return c.Count(ctx)
	}
	all, err := s.store.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

// Ping checks the store when it can report health.
func (s *LedgerService) Ping(ctx context.Context) error {
	if p, ok := s.store.(ledger.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// logFailure records storage failures; rejected input is the caller's to
// report.
func (s *LedgerService) logFailure(ctx context.Context, msg string, err error, op string) {
	if !errors.Is(err, core.ErrStorageUnavailable) {
		return
	}
	log.NewStructuredLogger(s.logger).LogError(ctx, msg, err, op, nil)
}

func (s *LedgerService) changed(ctx context.Context, event *amqp.LedgerEvent) {
	if s.reports != nil {
		s.reports.Purge()
	}
	for _, fn := range s.onChange {
		fn(ctx)
	}
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP disabled, skipping ledger event", log.FieldEventType, event.Type)
		return
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, event.Type,
			log.FieldError, err)
	}
}

// Close closes the store and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
