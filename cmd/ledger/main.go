package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledger/internal/cache"
	"ledger/internal/charts"
	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		// The logger is not configured yet.
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	logger.Info("Starting ledger server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp", cfg.AMQPEnabled(),
		log.FieldOperation, log.OpStartup)

	ctx := context.Background()
	svc, err := cli.OpenLedger(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger)
	if rc := svc.ReportCache(); rc != nil {
		cacheManager.Register(rc)
		cacheManager.StartCleanup(cfg.ReportCacheTTL)
	}

	format, _ := charts.ParseFormat(cfg.ChartFormat)

	// Without a broker there is no ledger-worker listening, so chart files
	// are kept fresh in process.
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	if !cfg.AMQPEnabled() {
		cw := worker.NewChartWorker(worker.ReportFunc(svc.Report),
			charts.NewRenderer(cfg.ChartOutputDir, format),
			worker.Config{Refresh: cfg.ChartRefreshInterval}, logger)
		svc.OnChange(cw.MarkDirty)
		go func() {
			defer close(workerDone)
			_ = cw.Run(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, logger, apphttp.Options{
		Currency:           cfg.Currency,
		ChartFormat:        format,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	sigCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		stopWorker()
		<-workerDone
		cacheManager.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Ledger close error", log.FieldError, err)
		}
	})

	logger.Info("Listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		stopWorker()
		cacheManager.Stop()
		_ = svc.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(sigCtx, done)
	logger.Info("Server stopped gracefully")
}
