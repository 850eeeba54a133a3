package main

import (
	"context"
	"errors"
	"os"
	"time"

	"gastos/internal/adapters"
	"gastos/internal/amqp"
	"gastos/internal/backend"
	"gastos/internal/cli"
	"gastos/internal/client"
	applog "gastos/internal/log"
	"gastos/internal/worker"
)

const mirrorBatchSize = 200

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting gastos-worker", "mirror", cfg.MirrorBackend, applog.FieldOperation, applog.OpStartup)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker", applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	mirror, err := backend.NewMirror(context.Background(), backend.Config{
		Type:                backend.MirrorType(cfg.MirrorBackend),
		GoogleSpreadsheetID: cfg.GoogleSpreadsheetID,
		GoogleSheetName:     cfg.GoogleSheetName,
	}, cli.Slog(logger, applog.ComponentSheets))
	if err != nil {
		logger.Error("Failed to initialize mirror", applog.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cli.Slog(logger, applog.ComponentAMQP))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(mirror, adapters.NewAPILister(client.New(cfg.APIURL)), mirrorBatchSize, cli.Slog(logger, applog.ComponentWorker))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", applog.FieldError, err)
		}
	})

	// Recover events lost while the worker was down; failures are not fatal.
	if err := mirrorWorker.StartupSync(ctx); err != nil {
		logger.Error("Startup sync failed", applog.FieldError, err, applog.FieldOperation, applog.OpMirror)
	}

	if err := amqpClient.Consume(ctx, mirrorWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
