package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"ledger/internal/charts"
	"ledger/internal/core"
	"ledger/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().BodyJSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports 503 while the store cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if err := s.ledger.Ping(ctx); err != nil {
		checks["storage"] = "failed: " + err.Error()
		status = "not_ready"
		code = http.StatusServiceUnavailable
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
	} else {
		checks["storage"] = "ok"
		if c, ok := s.ledger.(counter); ok {
			if n, err := c.Count(ctx); err == nil {
				checks["expenses"] = n
			}
		}
	}

	if rc, ok := s.ledger.(reportCacher); ok && rc.ReportCache() != nil {
		st := rc.ReportCache().Stats()
		checks["report_cache"] = map[string]any{"entries": st.Size, "hits": st.Hits, "misses": st.Misses}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	NewHTMXResponse().Status(code).BodyJSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	tm := s.traceMiddleware.GetMetrics()
	rl := s.rateLimiter.GetMetrics()
	sec := s.securityDetector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", tm.AverageResponseTime)
	metric("expenses_added_total", "counter", "Expenses stored through this server", s.expensesAdded.Load())
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rl.TotalHits)
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", rl.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests flagged as scans", sec.SuspiciousRequests)
	if rc, ok := s.ledger.(reportCacher); ok && rc.ReportCache() != nil {
		st := rc.ReportCache().Stats()
		metric("report_cache_hits_total", "counter", "Report cache hits", st.Hits)
		metric("report_cache_misses_total", "counter", "Report cache misses", st.Misses)
	}
	metric("uptime_seconds", "gauge", "Server uptime", int64(time.Since(s.started).Seconds()))
}

type indexData struct {
	Months   []string
	Currency string
	Expenses expensesView
	Summary  summaryView
	Charts   chartsView
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found.").Write(w)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx := r.Context()
	items, err := s.ledger.List(ctx)
	if err != nil {
		s.storageFailure(w, r, "Could not load the ledger.", err)
		return
	}
	rep, err := s.ledger.Report(ctx)
	if err != nil {
		s.storageFailure(w, r, "Could not load the ledger.", err)
		return
	}

	s.render(w, r, "index.html", indexData{
		Months:   core.Months[:],
		Currency: s.currency,
		Expenses: newExpensesView(items, s.currency),
		Summary:  newSummaryView(rep, s.currency),
		Charts:   s.newChartsView(rep.Empty()),
	})
}

// handleCreateExpense stores one entry. Invalid input gets a 422 fragment.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	in, isJSON, err := parseExpenseInput(r)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Parse expense request failed", log.FieldError, err)
		BadRequestError("Malformed request.").Write(w)
		return
	}

	e, err := s.ledger.Submit(ctx, in.Category, in.Amount, in.Month)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			msg := userMessage(err)
			if isJSON || wantsJSON(r) {
				NewHTMXResponse().Status(http.StatusUnprocessableEntity).
					BodyJSON(map[string]string{"error": msg}).Write(w)
				return
			}
			UnprocessableEntityError(msg).Write(w)
			return
		}
		s.storageFailure(w, r, "Could not save the expense.", err)
		return
	}
	s.expensesAdded.Add(1)

	if isJSON || wantsJSON(r) {
		NewHTMXResponse().BodyJSON(newExpenseResponse(e)).Write(w)
		return
	}

	amount := core.FormatAmount(e.Amount, s.currency)
	NewHTMXResponse().
		TriggerLedgerChanged().
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Saved %s %s", e.Category, amount)).
		BodyHTML(fmt.Sprintf(`<div class="success">Saved #%d: %s, %s (%s)</div>`,
			e.ID, escape(e.Category), escape(amount), escape(e.Month))).
		Write(w)
}

// handleClear empties the ledger once the request confirms it.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Malformed request.").Write(w)
		return
	}
	if !strings.EqualFold(p.Get("confirm"), "yes") {
		UnprocessableEntityError("Confirm clearing the ledger with confirm=yes.").Write(w)
		return
	}

	if err := s.ledger.ClearAll(r.Context()); err != nil {
		s.storageFailure(w, r, "Could not clear the ledger.", err)
		return
	}
	NewHTMXResponse().
		TriggerLedgerChanged().
		TriggerNotification(NotificationInfo, "Ledger cleared", 3000).
		BodyHTML(`<div class="success">Ledger cleared.</div>`).
		Write(w)
}

func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	rep, err := s.ledger.Report(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Build report failed", log.FieldError, err)
		NewHTMXResponse().Status(http.StatusInternalServerError).
			BodyJSON(map[string]string{"error": "report unavailable"}).Write(w)
		return
	}
	NewHTMXResponse().BodyJSON(newReportResponse(rep, s.currency)).Write(w)
}

func (s *Server) handleExpensesPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	items, err := s.ledger.List(r.Context())
	if err != nil {
		s.storageFailure(w, r, "Could not load the ledger.", err)
		return
	}
	s.render(w, r, "expenses", newExpensesView(items, s.currency))
}

func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	rep, err := s.ledger.Report(r.Context())
	if err != nil {
		s.storageFailure(w, r, "Could not build the summary.", err)
		return
	}
	s.render(w, r, "summary", newSummaryView(rep, s.currency))
}

type chartLink struct {
	Title string
	URL   string
}

type chartsView struct {
	Empty  bool
	Charts []chartLink
}

var chartTitles = map[charts.Kind]string{
	charts.KindCategoryBar: "Spending by category",
	charts.KindCategoryPie: "Category distribution",
	charts.KindMonthBar:    "Monthly totals",
}

// newChartsView links every chart with a version so browsers refetch after
// each change.
func (s *Server) newChartsView(empty bool) chartsView {
	v := chartsView{Empty: empty}
	if empty {
		return v
	}
	version := time.Now().UnixNano()
	for _, k := range charts.Kinds {
		v.Charts = append(v.Charts, chartLink{
			Title: chartTitles[k],
			URL:   fmt.Sprintf("/charts/%s.%s?v=%d", k, s.chartFormat, version),
		})
	}
	return v
}

func (s *Server) handleChartsPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	rep, err := s.ledger.Report(r.Context())
	if err != nil {
		s.storageFailure(w, r, "Could not build the charts.", err)
		return
	}
	s.render(w, r, "charts", s.newChartsView(rep.Empty()))
}

// handleChart serves /charts/{kind}.{png,svg}; 204 when there is nothing to
// plot.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	name := path.Base(r.URL.Path)
	ext := path.Ext(name)
	if ext == "" {
		NotFoundError("Unknown chart.").Write(w)
		return
	}
	kind, err := charts.ParseKind(strings.TrimSuffix(name, ext))
	if err != nil {
		NotFoundError("Unknown chart.").Write(w)
		return
	}
	format, err := charts.ParseFormat(ext[1:])
	if err != nil {
		NotFoundError("Unknown chart format.").Write(w)
		return
	}

	ctx := r.Context()
	rep, err := s.ledger.Report(ctx)
	if err != nil {
		s.storageFailure(w, r, "Could not build the chart.", err)
		return
	}

	var buf bytes.Buffer
	if err := charts.Render(&buf, rep, kind, format); err != nil {
		if errors.Is(err, charts.ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.FromContext(ctx).WithComponent(log.ComponentCharts).ErrorContext(ctx, "Render chart failed",
			log.FieldChartKind, string(kind),
			log.FieldError, err)
		InternalServerError("Could not render the chart.").Write(w)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// storageFailure logs err and answers with a generic 500 fragment.
func (s *Server) storageFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), msg,
		log.FieldError, err,
		"storage_unavailable", errors.Is(err, core.ErrStorageUnavailable))
	InternalServerError(msg).Write(w)
}
