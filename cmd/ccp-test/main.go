package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cfarm/ccp-test/internal/api"
	"github.com/cfarm/ccp-test/internal/config"
	"github.com/cfarm/ccp-test/internal/gate"
	"github.com/cfarm/ccp-test/internal/observability"
	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/queue"
	"github.com/cfarm/ccp-test/internal/report"
	"github.com/cfarm/ccp-test/internal/statestore"
	"github.com/cfarm/ccp-test/internal/watcher"
	"github.com/cfarm/ccp-test/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel)
	logger.Info("starting ccp-test",
		"policy_path", cfg.PolicyPath,
		"input_dir", cfg.InputDir,
		"output_dir", cfg.OutputDir,
		"log_level", cfg.Observability.LogLevel)

	_ = observability.GetMetrics()
	logger.Debug("metrics initialized",
		"metrics_port", cfg.Observability.MetricsPort)

	healthChecker := observability.NewHealthChecker(logger)

	healthChecker.RegisterPipelineComponents()

	healthChecker.UpdateComponentHealth("config", observability.StatusHealthy, "")

	logger.Debug("health checker initialized",
		"health_port", cfg.Observability.HealthCheckPort)

	obsServer := observability.NewServer(
		cfg.Observability.MetricsPort,
		cfg.Observability.HealthCheckPort,
		logger,
		healthChecker,
	)

	go func() {
		if err := obsServer.Start(ctx); err != nil {
			logger.Error("observability server error",
				"error", err.Error())
		}
	}()

	logger.Debug("observability server started",
		"metrics_port", cfg.Observability.MetricsPort,
		"health_port", cfg.Observability.HealthCheckPort)

	logger.Debug("loading policy document",
		"path", cfg.PolicyPath)
	policyStore := policy.NewStore(cfg.PolicyPath, logger)
	if err := policyStore.Load(); err != nil {
		healthChecker.UpdateComponentHealth("policy", observability.StatusUnhealthy, err.Error())
		return fmt.Errorf("failed to load policy document: %w", err)
	}
	healthChecker.UpdateComponentHealth("policy", observability.StatusHealthy, "")
	doc := policyStore.Current()
	logger.Debug("policy document loaded",
		"version", doc.Version,
		"ignore_entries", len(doc.Ignore),
		"patch_entries", len(doc.Patch))

	logger.Debug("initializing state store",
		"type", cfg.StateStore.Type)
	var store statestore.StateStore
	switch cfg.StateStore.Type {
	case "sqlite":
		store, err = statestore.NewSQLiteStore(cfg.StateStore.SQLitePath)
		if err != nil {
			healthChecker.UpdateComponentHealth("statestore", observability.StatusUnhealthy, err.Error())
			return fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
	case "memory":
		return fmt.Errorf("memory state store not yet implemented")
	default:
		return fmt.Errorf("unsupported state store type: %s", cfg.StateStore.Type)
	}
	healthChecker.UpdateComponentHealth("statestore", observability.StatusHealthy, "")
	logger.Debug("state store initialized")

	logger.Debug("initializing task queue",
		"buffer_size", cfg.Queue.BufferSize)
	taskQueue := queue.NewInMemoryQueue(cfg.Queue.BufferSize)
	healthChecker.UpdateComponentHealth("queue", observability.StatusHealthy, "")
	logger.Debug("task queue initialized")

	logger.Debug("initializing report source",
		"input_dir", cfg.InputDir)
	source, err := report.NewSource(cfg.InputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize report source: %w", err)
	}
	logger.Debug("report source initialized")

	logger.Debug("initializing gate engine")
	gateConfig := gate.Config{}
	if settings, ok := doc.GateSettings(); ok {
		gateConfig.Expression = settings.Expression
		gateConfig.FailureMessage = settings.FailureMessage
	}
	gateEngine, err := gate.NewEngine(logger, gateConfig, policyStore)
	if err != nil {
		return fmt.Errorf("failed to initialize gate engine: %w", err)
	}
	logger.Debug("gate engine initialized")

	logger.Debug("initializing report watcher",
		"poll_interval", cfg.Worker.PollInterval,
		"reprocess_interval", cfg.StateStore.ReprocessInterval)
	watcherConfig := watcher.Config{
		PollInterval:      cfg.Worker.PollInterval,
		ReprocessInterval: cfg.StateStore.ReprocessInterval,
	}
	reportWatcher := watcher.NewWatcher(
		source,
		policyStore,
		store,
		taskQueue,
		watcherConfig,
		observability.ComponentLogger(logger, "watcher"),
	)
	healthChecker.UpdateComponentHealth("watcher", observability.StatusHealthy, "")
	logger.Debug("report watcher initialized")

	logger.Debug("initializing worker",
		"retry_attempts", cfg.Worker.RetryAttempts,
		"retry_backoff", cfg.Worker.RetryBackoff,
		"concurrency", cfg.Worker.Concurrency)
	workerConfig := worker.Config{
		RetryAttempts: cfg.Worker.RetryAttempts,
		RetryBackoff:  cfg.Worker.RetryBackoff,
		Concurrency:   cfg.Worker.Concurrency,
	}
	workerInstance := worker.NewReportWorker(
		taskQueue,
		policyStore,
		gateEngine,
		store,
		cfg.OutputDir,
		workerConfig,
		observability.ComponentLogger(logger, "worker"),
	)
	healthChecker.UpdateComponentHealth("worker", observability.StatusHealthy, "")
	logger.Debug("worker initialized")

	var apiServer *api.APIServer
	if cfg.API.Enabled {
		logger.Debug("initializing API server",
			"port", cfg.API.Port,
			"read_only", cfg.API.ReadOnly)
		apiServer = api.NewAPIServer(
			&cfg.API,
			store,
			taskQueue,
			policyStore,
			source,
			observability.ComponentLogger(logger, "api"),
		)
		logger.Debug("API server initialized")
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Debug("starting report watcher")
		if err := reportWatcher.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("report watcher error",
				"error", err.Error())
			errChan <- fmt.Errorf("report watcher error: %w", err)
		}
		logger.Debug("report watcher stopped")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Debug("starting worker")
		if err := workerInstance.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("worker error",
				"error", err.Error())
			errChan <- fmt.Errorf("worker error: %w", err)
		}
		logger.Debug("worker stopped")
	}()

	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("API server listening",
				"port", cfg.API.Port)
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("API server error",
					"error", err.Error())
				errChan <- fmt.Errorf("API server error: %w", err)
			}
			logger.Debug("API server stopped")
		}()
	}

	logger.Info("all components started successfully")

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errChan:
		logger.Error("component error, initiating shutdown",
			"error", err.Error())
		cancel()
	}

	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Debug("waiting for components to stop")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	queueDepth, _ := taskQueue.GetQueueDepth(shutdownCtx)
	if queueDepth > 0 {
		logger.Warn("queue not empty at shutdown",
			"remaining_tasks", queueDepth)
	} else {
		logger.Debug("queue drained successfully")
	}

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down API server",
				"error", err.Error())
		}
	}

	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down observability server",
			"error", err.Error())
	}

	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("error closing state store",
				"error", err.Error())
		}
	}

	logger.Info("shutdown complete")
	return nil
}
