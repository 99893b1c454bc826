package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/charts"
	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting ledger-worker",
		"chart_dir", cfg.ChartOutputDir,
		"format", cfg.ChartFormat,
		log.FieldOperation, log.OpStartup)

	// Other processes write the ledger, so reports are always built fresh.
	wcfg := *cfg
	wcfg.ReportCacheTTL = 0
	svc, err := cli.OpenLedger(context.Background(), &wcfg, logger, false)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer svc.Close()

	format, _ := charts.ParseFormat(cfg.ChartFormat)
	cw := worker.NewChartWorker(worker.ReportFunc(svc.Report),
		charts.NewRenderer(cfg.ChartOutputDir, format),
		worker.Config{Refresh: cfg.ChartRefreshInterval}, logger)

	var client *amqp.Client
	if cfg.AMQPEnabled() {
		client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
	} else {
		logger.Info("AMQP disabled, rendering on the refresh interval only",
			"interval", cfg.ChartRefreshInterval.String())
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cw.Run(gctx) })
	if client != nil {
		g.Go(func() error { return client.ConsumeWithRetry(gctx, cw.HandleEvent) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Worker failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully", "renders", cw.Renders())
}
