package charts

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/carlmjohnson/be"

	"ledger/internal/core"
	"ledger/internal/report"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleReport() report.Report {
	return report.Report{
		ByCategory: []core.CategoryTotal{{Category: "Food", Total: 30}, {Category: "Rent", Total: 70}},
		ByMonth:    []core.MonthTotal{{Month: "January", Total: 60}, {Month: "February", Total: 40}},
		Total:      100,
	}
}

func TestParseFormatAndKind(t *testing.T) {
	f, err := ParseFormat("SVG")
	be.NilErr(t, err)
	be.Equal(t, FormatSVG, f)
	be.Equal(t, "image/svg+xml", f.ContentType())

	f, err = ParseFormat("")
	be.NilErr(t, err)
	be.Equal(t, FormatPNG, f)

	_, err = ParseFormat("gif")
	be.Nonzero(t, err)

	k, err := ParseKind("pie")
	be.NilErr(t, err)
	be.Equal(t, KindCategoryPie, k)
	_, err = ParseKind("radar")
	be.Nonzero(t, err)
}

func TestRenderEachKind(t *testing.T) {
	rep := sampleReport()
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			var png bytes.Buffer
			be.NilErr(t, Render(&png, rep, kind, FormatPNG))
			be.True(t, bytes.HasPrefix(png.Bytes(), pngMagic))

			var svg bytes.Buffer
			be.NilErr(t, Render(&svg, rep, kind, FormatSVG))
			be.In(t, "<svg", svg.String())
		})
	}
}

func TestPieLabelsCarryPercentages(t *testing.T) {
	var svg bytes.Buffer
	be.NilErr(t, CategoryPie(&svg, sampleReport().ByCategory, FormatSVG))
	be.In(t, "Food 30.0%", svg.String())
	be.In(t, "Rent 70.0%", svg.String())
}

func TestNoData(t *testing.T) {
	var buf bytes.Buffer
	be.True(t, errors.Is(CategoryBar(&buf, nil, FormatPNG), ErrNoData))
	be.True(t, errors.Is(MonthBar(&buf, nil, FormatPNG), ErrNoData))
	be.True(t, errors.Is(CategoryPie(&buf, nil, FormatPNG), ErrNoData))
	// A ledger holding only zero amounts has nothing to slice.
	be.True(t, errors.Is(CategoryPie(&buf, []core.CategoryTotal{{Category: "Food"}}, FormatPNG), ErrNoData))
	be.Equal(t, 0, buf.Len())
}

func TestZeroTotalsStillDrawBars(t *testing.T) {
	var buf bytes.Buffer
	be.NilErr(t, CategoryBar(&buf, []core.CategoryTotal{{Category: "Food"}}, FormatPNG))
	be.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRendererRenderAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	r := NewRenderer(dir, FormatPNG)

	paths, err := r.RenderAll(sampleReport())
	be.NilErr(t, err)
	be.Equal(t, 3, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		be.NilErr(t, err)
		be.True(t, bytes.HasPrefix(data, pngMagic))
	}

	// An emptied ledger removes the old images.
	paths, err = r.RenderAll(report.Report{})
	be.NilErr(t, err)
	be.Equal(t, 0, len(paths))
	entries, err := os.ReadDir(dir)
	be.NilErr(t, err)
	be.Equal(t, 0, len(entries))
}
