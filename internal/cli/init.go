// Package cli holds the start-up steps shared by the ledger binaries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/report"
	"ledger/internal/services"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig reads the environment and validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from config and makes it the slog
// default. Invalid levels were rejected by Validate.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// ConnectAMQP returns a client when AMQP is configured. A broker that cannot
// be reached is logged and treated as disabled.
func ConnectAMQP(cfg *config.Config, logger *log.Logger) *amqp.Client {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled, ledger events will not be published")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return nil
	}
	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// OpenLedger opens the configured store and wraps it in a LedgerService.
// Closing the service releases the store and the AMQP client.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger, publish bool) (*services.LedgerService, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithReportCache(cfg.ReportCacheTTL),
		services.WithReportOptions(report.Options{SortCategories: cfg.SortCategories}),
	}
	if publish {
		if client := ConnectAMQP(cfg, logger); client != nil {
			opts = append(opts, services.WithPublisher(client))
		}
	}
	return services.NewLedgerService(res.Store, opts...), nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a deadline of timeout; done closes when it
// returns or the deadline passes.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the signal arrives and cleanup is over.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
