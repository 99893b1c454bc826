package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/carlmjohnson/be"

	"ledger/internal/charts"
	"ledger/internal/core"
	"ledger/internal/ledger/memory"
	"ledger/internal/log"
	"ledger/internal/report"
	"ledger/internal/services"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	logger := log.New(log.Config{Output: io.Discard})
	store := memory.New()
	svc := services.NewLedgerService(store,
		services.WithLogger(logger),
		services.WithReportCache(time.Minute))
	srv, err := NewServer(":0", svc, logger, Options{Currency: "USD", ChartFormat: charts.FormatSVG})
	be.NilErr(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	r := httptest.NewRequest(method, target, body)
	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	r.RemoteAddr = "192.0.2.1:1234"
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, r)
	return rr
}

func expenseForm(category, amount, month string) url.Values {
	return url.Values{"category": {category}, "amount": {amount}, "month": {month}}
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/", nil)
	be.Equal(t, http.StatusOK, rr.Code)
	be.In(t, "Expense Ledger", rr.Body.String())
	be.In(t, `<option value="December">December</option>`, rr.Body.String())
	be.In(t, "No data yet.", rr.Body.String())
	be.In(t, "No data to summarize.", rr.Body.String())
	be.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	be.Nonzero(t, rr.Header().Get("X-Request-ID"))

	for _, p := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, p, nil)
		be.Equal(t, http.StatusOK, rr.Code)
		be.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	}
	be.In(t, `"expenses":0`, do(t, srv, http.MethodGet, "/readyz", nil).Body.String())

	rr = do(t, srv, http.MethodGet, "/nope", nil)
	be.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateExpenseValidationAndSuccess(t *testing.T) {
	srv, store := newTestServer(t)

	invalid := []struct {
		name string
		form url.Values
		msg  string
	}{
		{"blank category", expenseForm("  ", "5", "May"), "Category is required."},
		{"zero amount", expenseForm("food", "0", "May"), "greater than zero"},
		{"blank amount", expenseForm("food", "", "May"), "must be a number"},
		{"text amount", expenseForm("food", "abc", "May"), "must be a number"},
		{"negative amount", expenseForm("food", "-5", "May"), "must not be negative"},
		{"unknown month", expenseForm("food", "5", "Marchx"), "Pick a month"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/expenses", tt.form)
			be.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			be.In(t, tt.msg, rr.Body.String())
		})
	}
	be.Equal(t, 0, store.Len())

	rr := do(t, srv, http.MethodPost, "/expenses", expenseForm("food", "12,50", "january"))
	be.Equal(t, http.StatusOK, rr.Code)
	be.In(t, "Saved #1: Food, $12.50 (January)", rr.Body.String())
	be.In(t, EventLedgerChanged, rr.Header().Get("HX-Trigger"))
	be.In(t, EventFormReset, rr.Header().Get("HX-Trigger"))
	be.Equal(t, 1, store.Len())

	rr = do(t, srv, http.MethodGet, "/expenses", nil)
	be.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	be.Equal(t, "POST", rr.Header().Get("Allow"))
}

func TestCreateExpenseJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodPost, "/expenses",
		strings.NewReader(`{"category":"rent","amount":500,"month":"May"}`))
	r.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, r)

	be.Equal(t, http.StatusOK, rr.Code)
	var got expenseResponse
	be.NilErr(t, json.Unmarshal(rr.Body.Bytes(), &got))
	be.Equal(t, expenseResponse{ID: 1, Category: "Rent", Amount: 500, Month: "May"}, got)
}

func TestPartialsAndReport(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, f := range []url.Values{
		expenseForm("food", "10", "February"),
		expenseForm("rent", "500", "January"),
		expenseForm("food", "5", "January"),
	} {
		be.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/expenses", f).Code)
	}

	rr := do(t, srv, http.MethodGet, "/ui/expenses", nil)
	be.Equal(t, http.StatusOK, rr.Code)
	be.In(t, "<td>Rent</td>", rr.Body.String())
	be.In(t, "$515.00", rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/ui/summary", nil)
	be.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	be.In(t, "$15.00", body)
	be.True(t, strings.Index(body, "January") < strings.Index(body, "February"))

	rr = do(t, srv, http.MethodGet, "/api/report", nil)
	be.Equal(t, http.StatusOK, rr.Code)
	var rep reportResponse
	be.NilErr(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	be.Equal(t, 515.0, rep.Total)
	be.Equal(t, "USD", rep.Currency)
	be.AllEqual(t, []categoryTotal{{"Food", 15}, {"Rent", 500}}, rep.ByCategory)
	be.AllEqual(t, []monthTotal{{"January", 505}, {"February", 10}}, rep.ByMonth)

	rr = do(t, srv, http.MethodGet, "/ui/charts", nil)
	be.In(t, "/charts/category.svg?v=", rr.Body.String())
}

func TestCharts(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/charts/category.png", nil)
	be.Equal(t, http.StatusNoContent, rr.Code)

	be.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/expenses", expenseForm("food", "10", "March")).Code)

	tests := []struct {
		path        string
		code        int
		contentType string
	}{
		{"/charts/category.png", http.StatusOK, "image/png"},
		{"/charts/distribution.svg", http.StatusOK, "image/svg+xml"},
		{"/charts/monthly.svg", http.StatusOK, "image/svg+xml"},
		{"/charts/radar.png", http.StatusNotFound, ""},
		{"/charts/category.gif", http.StatusNotFound, ""},
		{"/charts/category", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.path, nil)
			be.Equal(t, tt.code, rr.Code)
			if tt.contentType != "" {
				be.Equal(t, tt.contentType, rr.Header().Get("Content-Type"))
				be.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
			}
		})
	}

	rr = do(t, srv, http.MethodGet, "/charts/category.png", nil)
	be.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))
}

func TestClear(t *testing.T) {
	srv, store := newTestServer(t)
	be.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/expenses", expenseForm("food", "1", "May")).Code)

	rr := do(t, srv, http.MethodPost, "/expenses/clear", url.Values{})
	be.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	be.Equal(t, 1, store.Len())

	rr = do(t, srv, http.MethodPost, "/expenses/clear", url.Values{"confirm": {"yes"}})
	be.Equal(t, http.StatusOK, rr.Code)
	be.In(t, EventLedgerChanged, rr.Header().Get("HX-Trigger"))
	be.Equal(t, 0, store.Len())

	// The cached report must not outlive the clear.
	rr = do(t, srv, http.MethodGet, "/ui/summary", nil)
	be.In(t, "No data to summarize.", rr.Body.String())
}

type failingLedger struct{}

var errDown = core.StorageError("open", errors.New("disk gone"))

func (failingLedger) Submit(context.Context, string, string, string) (core.Expense, error) {
	return core.Expense{}, errDown
}
func (failingLedger) List(context.Context) ([]core.Expense, error)  { return nil, errDown }
func (failingLedger) Report(context.Context) (report.Report, error) { return report.Report{}, errDown }
func (failingLedger) ClearAll(context.Context) error                { return errDown }
func (failingLedger) Ping(context.Context) error                    { return errDown }

func TestStorageFailures(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	srv, err := NewServer(":0", failingLedger{}, logger, Options{})
	be.NilErr(t, err)
	defer srv.Shutdown(context.Background())

	be.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/readyz", nil).Code)
	be.Equal(t, http.StatusInternalServerError, do(t, srv, http.MethodGet, "/ui/expenses", nil).Code)
	be.Equal(t, http.StatusInternalServerError, do(t, srv, http.MethodGet, "/api/report", nil).Code)

	rr := do(t, srv, http.MethodPost, "/expenses", expenseForm("food", "1", "May"))
	be.Equal(t, http.StatusInternalServerError, rr.Code)
	be.False(t, strings.Contains(rr.Body.String(), "disk gone"))
}

func TestRateLimitOnPost(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	svc := services.NewLedgerService(memory.New(), services.WithLogger(logger))
	srv, err := NewServer(":0", svc, logger, Options{RateLimitPerMinute: 2})
	be.NilErr(t, err)
	defer srv.Shutdown(context.Background())

	for i := 0; i < 2; i++ {
		be.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/expenses", expenseForm("food", "1", "May")).Code)
	}
	rr := do(t, srv, http.MethodPost, "/expenses", expenseForm("food", "1", "May"))
	be.Equal(t, http.StatusTooManyRequests, rr.Code)
	be.Equal(t, "60", rr.Header().Get("Retry-After"))

	// Reads are never limited.
	be.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/ui/expenses", nil).Code)

	rr = do(t, srv, http.MethodGet, "/metrics", nil)
	be.In(t, "rate_limit_hits_total 1", rr.Body.String())
	be.In(t, "expenses_added_total 2", rr.Body.String())
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/static/style.css", nil)
	be.Equal(t, http.StatusOK, rr.Code)
	be.In(t, "max-age=3600", rr.Header().Get("Cache-Control"))
}
