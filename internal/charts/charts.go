// Package charts renders ledger reports as PNG or SVG images.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"

	"ledger/internal/core"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

// Format selects the image encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPNG, "":
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	}
	return "", fmt.Errorf("unsupported chart format %q", s)
}

// ContentType is the MIME type for the encoded image.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() chart.RendererProvider {
	if f == FormatSVG {
		return chart.SVG
	}
	return chart.PNG
}

// Kind names one of the charts the ledger offers.
type Kind string

const (
	KindCategoryBar Kind = "category"
	KindCategoryPie Kind = "distribution"
	KindMonthBar    Kind = "monthly"
)

var Kinds = []Kind{KindCategoryBar, KindCategoryPie, KindMonthBar}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "category", "bar":
		return KindCategoryBar, nil
	case "distribution", "pie":
		return KindCategoryPie, nil
	case "monthly", "month":
		return KindMonthBar, nil
	}
	return "", fmt.Errorf("unknown chart kind %q", s)
}

const (
	barWidth   = 48
	barSpacing = 24
	minWidth   = 640
	height     = 420
)

var background = chart.Style{
	Padding: chart.Box{
		Top:    40,
		Left:   20,
		Right:  20,
		Bottom: 20,
	},
	FillColor: chart.ColorWhite,
}

// CategoryBar draws one bar per category.
func CategoryBar(w io.Writer, totals []core.CategoryTotal, format Format) error {
	if len(totals) == 0 {
		return ErrNoData
	}
	values := make([]chart.Value, 0, len(totals))
	for _, t := range totals {
		values = append(values, chart.Value{Label: t.Category, Value: t.Total})
	}
	return renderBars(w, "Total spending by category", values, format)
}

// MonthBar draws one bar per month in the order given; callers pass the
// calendar-ordered slice from the report package.
func MonthBar(w io.Writer, totals []core.MonthTotal, format Format) error {
	if len(totals) == 0 {
		return ErrNoData
	}
	values := make([]chart.Value, 0, len(totals))
	for _, t := range totals {
		values = append(values, chart.Value{Label: t.Month, Value: t.Total})
	}
	return renderBars(w, "Spending by month", values, format)
}

// CategoryPie draws each category's share of the total with a percentage
// label. Categories with a zero total have no slice.
func CategoryPie(w io.Writer, totals []core.CategoryTotal, format Format) error {
	var sum float64
	for _, t := range totals {
		sum += t.Total
	}
	if len(totals) == 0 || sum <= 0 {
		return ErrNoData
	}

	values := make([]chart.Value, 0, len(totals))
	for _, t := range totals {
		if t.Total <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.1f%%", t.Category, t.Total/sum*100),
			Value: t.Total,
			Style: chart.Style{
				FontSize:  11,
				FontColor: chart.ColorBlack,
			},
		})
	}

	pie := chart.PieChart{
		Title:      "Spending distribution",
		Width:      520,
		Height:     520,
		Values:     values,
		Background: background,
	}
	if err := pie.Render(format.provider(), w); err != nil {
		return fmt.Errorf("render distribution chart: %w", err)
	}
	return nil
}

func renderBars(w io.Writer, title string, values []chart.Value, format Format) error {
	maxValue := 0.0
	for _, v := range values {
		maxValue = math.Max(maxValue, v.Value)
	}
	// go-chart refuses a zero-height range, which an all-zero ledger produces.
	if maxValue == 0 {
		maxValue = 1
	}

	width := len(values)*(barWidth+barSpacing) + 160
	if width < minWidth {
		width = minWidth
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: background,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: maxValue * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Bars: values,
	}
	if err := graph.Render(format.provider(), w); err != nil {
		return fmt.Errorf("render %q: %w", title, err)
	}
	return nil
}
