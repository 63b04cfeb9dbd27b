package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daimoniac/vesselfit/internal/api"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/watcher"
	"github.com/daimoniac/vesselfit/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, recalculation worker and inspection watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel)
	logger.Info("starting vesselfit",
		"config", cfg.ConfigPath,
		"log_level", cfg.Observability.LogLevel)

	_ = observability.GetMetrics()
	logger.Debug("metrics initialized",
		"metrics_port", cfg.Observability.MetricsPort)

	healthChecker := observability.NewHealthChecker(logger)

	healthChecker.RegisterComponent("config")
	healthChecker.RegisterComponent("materials")
	healthChecker.RegisterComponent("database")
	healthChecker.RegisterComponent("queue")
	healthChecker.RegisterComponent("worker")
	if cfg.Watcher.Dir != "" {
		healthChecker.RegisterOptionalComponent("watcher")
	}

	healthChecker.UpdateComponentHealth("config", observability.StatusHealthy, "")

	obsServer := observability.NewServer(
		cfg.Observability.MetricsPort,
		cfg.Observability.HealthCheckPort,
		logger,
		healthChecker,
	)

	errChan := make(chan error, 4)

	go func() {
		if err := obsServer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("observability server error: %w", err)
		}
	}()

	logger.Debug("observability server started",
		"metrics_port", cfg.Observability.MetricsPort,
		"health_port", cfg.Observability.HealthCheckPort)

	a, err := newApp(cfg, logger)
	if err != nil {
		healthChecker.UpdateComponentHealth("database", observability.StatusUnhealthy, err.Error())
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("error closing state store",
				"error", err.Error())
		}
	}()
	healthChecker.UpdateComponentHealth("materials", observability.StatusHealthy, "")
	healthChecker.UpdateComponentHealth("database", observability.StatusHealthy, "")
	logger.Debug("calculation stack initialized")

	go healthChecker.StartPeriodicChecks(ctx, 30*time.Second, map[string]observability.HealthCheckFunc{
		"database": observability.PingCheck(a.store),
	})

	logger.Debug("initializing task queue",
		"buffer_size", cfg.Queue.BufferSize)
	taskQueue := queue.NewInMemoryQueue(cfg.Queue.BufferSize)
	healthChecker.UpdateComponentHealth("queue", observability.StatusHealthy, "")

	logger.Debug("initializing worker",
		"concurrency", cfg.Worker.Concurrency,
		"retry_attempts", cfg.Worker.RetryAttempts,
		"retry_backoff", cfg.Worker.RetryBackoff)
	workerInstance := worker.NewRecalculationWorker(
		taskQueue,
		a.assessment,
		a.store,
		worker.Config{
			RetryAttempts: cfg.Worker.RetryAttempts,
			RetryBackoff:  cfg.Worker.RetryBackoff,
			Concurrency:   cfg.Worker.Concurrency,
		},
		logger,
		worker.WithIntegrityCheck(a.audit.CountUnverified),
	)
	healthChecker.UpdateComponentHealth("worker", observability.StatusHealthy, "")

	var inspectionWatcher watcher.Watcher
	if cfg.Watcher.Dir != "" {
		logger.Debug("initializing inspection watcher",
			"dir", cfg.Watcher.Dir,
			"settle", cfg.Watcher.Settle)
		inspectionWatcher = watcher.NewWatcher(workerInstance, watcher.Config{
			Dir:    cfg.Watcher.Dir,
			Settle: cfg.Watcher.Settle,
		}, logger)
		healthChecker.UpdateComponentHealth("watcher", observability.StatusHealthy, "")
	}

	var apiServer *api.APIServer
	if cfg.API.Enabled {
		logger.Debug("initializing API server",
			"port", cfg.API.Port,
			"read_only", cfg.API.ReadOnly)
		apiServer = api.NewAPIServer(
			&cfg.API,
			a.assessment,
			a.resolver,
			a.audit,
			workerInstance,
			a.store,
			logger,
		)
	}

	var wg sync.WaitGroup

	if inspectionWatcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Debug("starting inspection watcher")
			// A watcher failure degrades the service; it never stops it
			if err := inspectionWatcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				healthChecker.UpdateComponentHealth("watcher", observability.StatusUnhealthy, err.Error())
				logger.Error("inspection watcher error",
					"dir", cfg.Watcher.Dir,
					"error", err.Error())
			}
			logger.Debug("inspection watcher stopped")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Debug("starting worker")
		if err := workerInstance.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			healthChecker.UpdateComponentHealth("worker", observability.StatusUnhealthy, err.Error())
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
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("API server error: %w", err)
			}
			logger.Debug("API server stopped")
		}()
	}

	logger.Info("all components started successfully")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-errChan:
		logger.Error("component error, initiating shutdown",
			"error", runErr.Error())
		cancel()
	}

	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

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
	}
	if err := taskQueue.Close(); err != nil {
		logger.Error("error closing task queue",
			"error", err.Error())
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

	logger.Info("shutdown complete")
	return runErr
}
