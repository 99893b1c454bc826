package charts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ledger/internal/report"
)

// Render draws one chart kind from a report.
func Render(w io.Writer, rep report.Report, kind Kind, format Format) error {
	switch kind {
	case KindCategoryBar:
		return CategoryBar(w, rep.ByCategory, format)
	case KindCategoryPie:
		return CategoryPie(w, rep.ByCategory, format)
	case KindMonthBar:
		return MonthBar(w, rep.ByMonth, format)
	}
	return fmt.Errorf("unknown chart kind %q", kind)
}

// Renderer writes every chart kind into a directory.
type Renderer struct {
	Dir    string
	Format Format
}

func NewRenderer(dir string, format Format) *Renderer {
	return &Renderer{Dir: dir, Format: format}
}

// Path returns the file a chart kind is written to.
func (r *Renderer) Path(kind Kind) string {
	return filepath.Join(r.Dir, string(kind)+"."+string(r.Format))
}

// RenderAll writes each chart with a temp file and rename so readers never
// see a partial image. Charts with no data have their stale file removed.
// It returns the paths that now exist.
func (r *Renderer) RenderAll(rep report.Report) ([]string, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	var written []string
	for _, kind := range Kinds {
		path := r.Path(kind)

		var buf bytes.Buffer
		err := Render(&buf, rep, kind, r.Format)
		if errors.Is(err, ErrNoData) {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return written, fmt.Errorf("remove stale %s: %w", path, err)
			}
			continue
		}
		if err != nil {
			return written, err
		}

		if err := writeAtomic(path, buf.Bytes()); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chart-*")
	if err != nil {
		return fmt.Errorf("create temp chart: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp chart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp chart: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish chart %s: %w", path, err)
	}
	return nil
}
