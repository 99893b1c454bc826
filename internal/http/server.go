package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ledger/internal/cache"
	"ledger/internal/charts"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/report"
	appweb "ledger/web"
)

// Ledger is what the handlers need from the service layer.
// *services.LedgerService satisfies it.
type Ledger interface {
	Submit(ctx context.Context, category, amountText, month string) (core.Expense, error)
	List(ctx context.Context) ([]core.Expense, error)
	Report(ctx context.Context) (report.Report, error)
	ClearAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

type counter interface {
	Count(ctx context.Context) (int64, error)
}

// reportCacher is implemented by services that cache reports.
type reportCacher interface {
	ReportCache() *cache.LRUCache[report.Report]
}

type Options struct {
	Currency           string
	ChartFormat        charts.Format
	RateLimitPerMinute int
	// Templates and Static default to the embedded web assets.
	Templates fs.FS
	Static    fs.FS
}

type Server struct {
	http.Server

	ledger      Ledger
	templates   *template.Template
	logger      *log.Logger
	currency    string
	chartFormat charts.Format

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	started       time.Time
	expensesAdded atomic.Int64
	shutdownOnce  sync.Once
}

// NewServer parses the templates and wires routes and middleware.
func NewServer(addr string, ledger Ledger, logger *log.Logger, opts Options) (*Server, error) {
	if opts.Templates == nil {
		opts.Templates = appweb.TemplatesFS
	}
	if opts.Static == nil {
		opts.Static = appweb.StaticFS
	}
	if opts.ChartFormat == "" {
		opts.ChartFormat = charts.FormatPNG
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrency
	}

	t, err := template.New("").ParseFS(opts.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		ledger:           ledger,
		templates:        t,
		logger:           logger.WithComponent(log.ComponentHTTP),
		currency:         opts.Currency,
		chartFormat:      opts.ChartFormat,
		securityDetector: security.NewDetector(),
		started:          time.Now(),
	}

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}
	s.rateLimiter = ratelimit.NewLimiter(rlConfig)
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()

	static, err := fs.Sub(opts.Static, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("/static/", security.StaticAssets(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/expenses", s.handleCreateExpense)
	mux.HandleFunc("/expenses/clear", s.handleClear)
	mux.HandleFunc("/api/report", s.handleReportJSON)
	mux.Handle("/charts/", security.NoStore(http.HandlerFunc(s.handleChart)))
	// UI partials
	mux.HandleFunc("/ui/expenses", s.handleExpensesPartial)
	mux.HandleFunc("/ui/summary", s.handleSummaryPartial)
	mux.HandleFunc("/ui/charts", s.handleChartsPartial)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError("Too many requests. Please try again in a minute.").Write(w)
	})(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops background work and drains connections. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// render executes a named template, logging failures.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldError, err)
	}
}
