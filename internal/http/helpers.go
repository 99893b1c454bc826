package http

import (
	"errors"
	"html/template"
	"strings"

	"ledger/internal/core"
	"ledger/internal/report"
)

// sanitizeInput trims whitespace and drops control characters other than
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func escape(s string) string { return template.HTMLEscapeString(s) }

// userMessage turns a validation error into text fit for the form.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyCategory):
		return "Category is required."
	case errors.Is(err, core.ErrZeroAmount):
		return "Amount must be greater than zero."
	case errors.Is(err, core.ErrNegativeAmount):
		return "Amount must not be negative."
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a number."
	case errors.Is(err, core.ErrUnknownMonth):
		return "Pick a month from the list."
	}
	return "Invalid input."
}

type expenseRow struct {
	ID       int64
	Category string
	Amount   string
	Month    string
}

type expensesView struct {
	Rows  []expenseRow
	Total string
}

func newExpensesView(items []core.Expense, currency string) expensesView {
	v := expensesView{Rows: make([]expenseRow, 0, len(items))}
	var total float64
	for _, e := range items {
		v.Rows = append(v.Rows, expenseRow{
			ID:       e.ID,
			Category: e.Category,
			Amount:   core.FormatAmount(e.Amount, currency),
			Month:    e.Month,
		})
		total += e.Amount
	}
	v.Total = core.FormatAmount(total, currency)
	return v
}

type summaryRow struct {
	Label  string
	Amount string
	// Width is the bar length in percent of the largest row.
	Width int
}

type summaryView struct {
	Categories []summaryRow
	Months     []summaryRow
	Total      string
	Dropped    []string
}

func newSummaryView(rep report.Report, currency string) summaryView {
	v := summaryView{
		Total:   core.FormatAmount(rep.Total, currency),
		Dropped: rep.Dropped,
	}

	var maxCat float64
	for _, c := range rep.ByCategory {
		maxCat = max(maxCat, c.Total)
	}
	for _, c := range rep.ByCategory {
		v.Categories = append(v.Categories, summaryRow{
			Label:  c.Category,
			Amount: core.FormatAmount(c.Total, currency),
			Width:  barWidthPercent(c.Total, maxCat),
		})
	}

	var maxMonth float64
	for _, m := range rep.ByMonth {
		maxMonth = max(maxMonth, m.Total)
	}
	for _, m := range rep.ByMonth {
		v.Months = append(v.Months, summaryRow{
			Label:  m.Month,
			Amount: core.FormatAmount(m.Total, currency),
			Width:  barWidthPercent(m.Total, maxMonth),
		})
	}
	return v
}

// barWidthPercent rounds to a percentage, keeping tiny non-zero values visible.
func barWidthPercent(v, maxV float64) int {
	if maxV <= 0 || v <= 0 {
		return 0
	}
	w := int(v*100/maxV + 0.5)
	return min(max(w, 2), 100)
}

// reportResponse is the JSON shape of /api/report.
type reportResponse struct {
	Currency   string          `json:"currency"`
	Total      float64         `json:"total"`
	Formatted  string          `json:"formatted_total"`
	ByCategory []categoryTotal `json:"by_category"`
	ByMonth    []monthTotal    `json:"by_month"`
	Dropped    []string        `json:"dropped_months,omitempty"`
}

type categoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type monthTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

func newReportResponse(rep report.Report, currency string) reportResponse {
	out := reportResponse{
		Currency:   strings.ToUpper(currency),
		Total:      rep.Total,
		Formatted:  core.FormatAmount(rep.Total, currency),
		ByCategory: make([]categoryTotal, 0, len(rep.ByCategory)),
		ByMonth:    make([]monthTotal, 0, len(rep.ByMonth)),
		Dropped:    rep.Dropped,
	}
	for _, c := range rep.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotal{Category: c.Category, Total: c.Total})
	}
	for _, m := range rep.ByMonth {
		out.ByMonth = append(out.ByMonth, monthTotal{Month: m.Month, Total: m.Total})
	}
	return out
}

type expenseResponse struct {
	ID       int64   `json:"id"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Month    string  `json:"month"`
}

func newExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{ID: e.ID, Category: e.Category, Amount: e.Amount, Month: e.Month}
}
