package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"intentdash/internal/backend"
	"intentdash/internal/cli"
	"intentdash/internal/log"
	"intentdash/internal/services"
	"intentdash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting intentdash-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.ArchiveEnabled() || cfg.AMQPURL == "" {
		logger.Error("The worker needs ARCHIVE_BACKEND and AMQP_URL")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendCfg.Export = true

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger).CreateBackend(bootCtx, backendCfg)
	bootCancel()
	if err != nil {
		logger.Error("Failed to initialize archive backend", log.FieldError, err)
		os.Exit(1)
	}
	if result.Broker == nil {
		logger.Error("AMQP broker unavailable, nothing to consume")
		_ = result.Cleanup()
		os.Exit(1)
	}

	var (
		exports   *services.ExportProcessor
		workerExp worker.Exports
	)
	if result.Exporter != nil {
		exports = services.NewExportProcessor(result.Archive, result.Exporter, services.ExportProcessorConfig{
			PollInterval: cfg.ExportInterval,
			BatchSize:    cfg.ExportBatchSize,
		}, logger)
		workerExp = exports
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	archiveWorker := worker.NewArchiveWorker(result.Archive, workerExp, cfg.ExportBatchSize, logger)

	ctx := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Process anything missed while the worker was down.
	if err := archiveWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup export check", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := result.Broker.ConsumeAnalyzed(gctx, archiveWorker.HandleAnalyzedMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if exports != nil {
		g.Go(func() error {
			if err := exports.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return exports.Stop(stopCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}

	if err := result.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", log.FieldError, err)
	}
	logger.Info("Worker stopped gracefully")
}
