package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"intentdash/internal/analysis"
	"intentdash/internal/backend"
	"intentdash/internal/cli"
	apphttp "intentdash/internal/http"
	"intentdash/internal/log"
	"intentdash/internal/store"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		bootCancel()
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(bootCtx, backendCfg)
	bootCancel()
	if err != nil {
		logger.Error("Failed to initialize archive backend", log.FieldError, err, log.FieldArchiveBackend, cfg.ArchiveBackend)
		os.Exit(1)
	}

	analyzer := analysis.NewClient(cfg.AnalysisURL, cfg.AnalysisTimeout)
	recorder := result.Recorder(logger)
	metrics := apphttp.NewAnalysisMetrics()

	storeLogger := logger.WithComponent(log.ComponentCommunications)
	factory := func(sessionID string) *store.IntentStore {
		return store.New(analyzer,
			store.WithSessionID(sessionID),
			store.WithRecorder(recorder),
			store.WithObserver(metrics.Observe),
			store.WithLogger(storeLogger))
	}

	opts := apphttp.Options{
		Registry:           store.NewRegistry(cfg.MaxSessions, cfg.SessionTTL, factory, logger),
		Metrics:            metrics,
		Readiness:          map[string]apphttp.ReadinessCheck{},
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SessionTTL:         cfg.SessionTTL,
		Location:           time.Local,
		Logger:             logger,
	}
	if result.Archive != nil {
		opts.History = result.Archive
	}
	for name, check := range result.HealthChecks() {
		opts.Readiness[name] = apphttp.ReadinessCheck(check)
	}

	srv := apphttp.NewServer(":"+cfg.Port, opts)

	// Configure server timeouts and limits. Analysis runs inside the POST
	// request, so the write timeout leaves room for the analysis timeout.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.AnalysisTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting intentdash server",
			"port", cfg.Port,
			log.FieldArchiveBackend, cfg.ArchiveBackend,
			"analysis_url", cfg.AnalysisURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = result.Cleanup()
		os.Exit(1)
	}

	if err := result.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
