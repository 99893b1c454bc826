// Package worker keeps rendered chart files in step with the ledger.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/charts"
	"ledger/internal/log"
	"ledger/internal/report"
)

// ReportSource builds a fresh report. *report.Builder satisfies it.
type ReportSource interface {
	Build(ctx context.Context) (report.Report, error)
}

// ReportFunc adapts a plain function, such as LedgerService.Report, to
// ReportSource.
type ReportFunc func(ctx context.Context) (report.Report, error)

func (f ReportFunc) Build(ctx context.Context) (report.Report, error) { return f(ctx) }

type Config struct {
	// Debounce is how often pending changes are flushed to disk.
	Debounce time.Duration
	// Refresh re-renders unconditionally, covering lost events.
	Refresh time.Duration
}

// ChartWorker re-renders charts after ledger changes. Several changes inside
// one debounce tick cause a single render.
type ChartWorker struct {
	source   ReportSource
	renderer *charts.Renderer
	cfg      Config
	logger   *log.Logger

	dirty   atomic.Bool
	renders atomic.Int64
}

func NewChartWorker(source ReportSource, renderer *charts.Renderer, cfg Config, logger *log.Logger) *ChartWorker {
	if cfg.Debounce <= 0 {
		cfg.Debounce = time.Second
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = 5 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ChartWorker{
		source:   source,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// MarkDirty schedules a render on the next debounce tick.
func (w *ChartWorker) MarkDirty(context.Context) {
	w.dirty.Store(true)
}

// HandleEvent is the AMQP handler. It never fails, so events are not requeued.
func (w *ChartWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	w.logger.DebugContext(ctx, "Ledger changed",
		log.FieldEventType, event.Type,
		log.FieldExpenseID, event.ID)
	w.MarkDirty(ctx)
	return nil
}

// Renders returns how many renders have completed.
func (w *ChartWorker) Renders() int64 {
	return w.renders.Load()
}

// RenderNow builds the report and writes every chart.
func (w *ChartWorker) RenderNow(ctx context.Context) error {
	start := time.Now()
	rep, err := w.source.Build(ctx)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	paths, err := w.renderer.RenderAll(rep)
	if err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	w.renders.Add(1)

	w.logger.InfoContext(ctx, "Charts rendered",
		log.FieldOperation, log.OpRender,
		"files", len(paths),
		"dir", w.renderer.Dir,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Run renders once, then serves debounce and refresh ticks until ctx ends.
// Render failures are logged and retried on the next tick.
func (w *ChartWorker) Run(ctx context.Context) error {
	if err := w.RenderNow(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Initial chart render failed", log.FieldError, err)
	}

	debounce := time.NewTicker(w.cfg.Debounce)
	defer debounce.Stop()
	refresh := time.NewTicker(w.cfg.Refresh)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Chart worker stopped", "reason", ctx.Err())
			return nil
		case <-debounce.C:
			if !w.dirty.Swap(false) {
				continue
			}
			if err := w.RenderNow(ctx); err != nil {
				w.dirty.Store(true)
				w.logger.ErrorContext(ctx, "Chart render failed", log.FieldError, err)
			}
		case <-refresh.C:
			w.dirty.Store(false)
			if err := w.RenderNow(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic chart render failed", log.FieldError, err)
			}
		}
	}
}
