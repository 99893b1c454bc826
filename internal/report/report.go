// Package report turns the ledger's raw aggregates into ordered views ready
// for display and charting.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// Report is the presentation-ready summary of the ledger.
type Report struct {
	ByCategory []core.CategoryTotal
	ByMonth    []core.MonthTotal
	Total      float64
	// Dropped lists month labels left out of ByMonth because they are not
	// calendar months.
	Dropped []string
}

// Empty reports whether the ledger had nothing to summarize.
func (r Report) Empty() bool {
	return len(r.ByCategory) == 0
}

// OrderByCalendar returns the month totals ordered January to December.
// Labels that are not canonical month names are left out.
func OrderByCalendar(totals map[string]float64) []core.MonthTotal {
	out := make([]core.MonthTotal, 0, len(totals))
	for _, m := range core.Months {
		if v, ok := totals[m]; ok {
			out = append(out, core.MonthTotal{Month: m, Total: v})
		}
	}
	return out
}

// MonthTotalsToMap folds month totals into a map, summing repeated labels.
func MonthTotalsToMap(totals []core.MonthTotal) map[string]float64 {
	out := make(map[string]float64, len(totals))
	for _, t := range totals {
		out[t.Month] += t.Total
	}
	return out
}

// SortByTotal returns a copy sorted by descending total, ties by name.
func SortByTotal(totals []core.CategoryTotal) []core.CategoryTotal {
	out := append([]core.CategoryTotal(nil), totals...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// droppedMonths lists the labels OrderByCalendar would discard, sorted.
func droppedMonths(totals map[string]float64) []string {
	var out []string
	for label := range totals {
		if _, ok := core.MonthIndex(label); !ok {
			out = append(out, label)
		}
	}
	sort.Strings(out)
	return out
}

// Options controls presentation choices that are not part of the data.
type Options struct {
	SortCategories bool
}

// Builder reads aggregates from a ledger backend and assembles a Report.
type Builder struct {
	source ledger.Aggregator
	opts   Options
}

func NewBuilder(source ledger.Aggregator, opts Options) *Builder {
	return &Builder{source: source, opts: opts}
}

// Build queries both aggregates concurrently and assembles the report.
func (b *Builder) Build(ctx context.Context) (Report, error) {
	var (
		byCategory []core.CategoryTotal
		byMonth    []core.MonthTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byCategory, err = b.source.AggregateByCategory(gctx)
		if err != nil {
			return fmt.Errorf("aggregate by category: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		byMonth, err = b.source.AggregateByMonth(gctx)
		if err != nil {
			return fmt.Errorf("aggregate by month: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	months := MonthTotalsToMap(byMonth)
	rep := Report{
		ByCategory: byCategory,
		ByMonth:    OrderByCalendar(months),
		Dropped:    droppedMonths(months),
	}
	if rep.ByCategory == nil {
		rep.ByCategory = []core.CategoryTotal{}
	}
	if b.opts.SortCategories {
		rep.ByCategory = SortByTotal(rep.ByCategory)
	}
	for _, c := range rep.ByCategory {
		rep.Total += c.Total
	}

	if len(rep.Dropped) > 0 {
		slog.WarnContext(ctx, "Unrecognized month labels left out of calendar view",
			"labels", rep.Dropped)
	}

	return rep, nil
}
