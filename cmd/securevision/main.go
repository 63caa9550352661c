package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/daimoniac/securevision/internal/api"
	"github.com/daimoniac/securevision/internal/client"
	"github.com/daimoniac/securevision/internal/config"
	"github.com/daimoniac/securevision/internal/dashboard"
	"github.com/daimoniac/securevision/internal/observability"
	"github.com/daimoniac/securevision/internal/posture"
	"github.com/daimoniac/securevision/internal/statestore"
	"github.com/joho/godotenv"
)

const storeCheckInterval = 30 * time.Second

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
	logger.Info("starting securevision",
		"metrics_base_url", cfg.Poller.BaseURL,
		"poll_interval", cfg.Poller.Interval.String(),
		"log_level", cfg.Observability.LogLevel)

	_ = observability.GetMetrics()
	logger.Debug("metrics initialized",
		"metrics_port", cfg.Observability.MetricsPort)

	healthChecker := observability.NewHealthChecker(logger)

	healthChecker.RegisterComponent("config")
	healthChecker.RegisterComponent("store")
	healthChecker.RegisterComponent(dashboard.HealthComponent)
	if cfg.API.Enabled {
		healthChecker.RegisterComponent("api")
	}

	healthChecker.UpdateComponentHealth("config", observability.StatusHealthy, "")

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

	logger.Debug("initializing state store",
		"type", cfg.StateStore.Type)
	store, err := statestore.New(statestore.Config{
		Type:         cfg.StateStore.Type,
		SQLitePath:   cfg.StateStore.SQLitePath,
		ValkeyAddr:   cfg.StateStore.ValkeyAddr,
		HistoryLimit: cfg.StateStore.HistoryLimit,
	}, logger)
	if err != nil {
		healthChecker.UpdateComponentHealth("store", observability.StatusUnhealthy, err.Error())
		return fmt.Errorf("failed to initialize state store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing state store",
				"error", err.Error())
		}
	}()

	logger.Debug("initializing posture engine",
		"expression", cfg.Posture.Expression)
	postureEngine, err := posture.NewEngine(logger, posture.Config{
		Expression:     cfg.Posture.Expression,
		FailureMessage: cfg.Posture.FailureMessage,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize posture engine: %w", err)
	}

	metricsClient, err := client.New(client.Config{
		BaseURL: cfg.Poller.BaseURL,
		Timeout: cfg.Poller.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize metrics client: %w", err)
	}

	session, err := dashboard.Open(dashboard.Options{
		Client:        metricsClient,
		Interval:      cfg.Poller.Interval,
		SeriesEnabled: cfg.Poller.SeriesEnabled,
		Store:         store,
		Posture:       postureEngine,
		Health:        healthChecker,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open dashboard session: %w", err)
	}
	// Runs before the store is closed
	defer session.Close()

	observability.RegisterSnapshotCollector(session.Metrics(), logger)

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		healthChecker.StartPeriodicChecks(ctx, storeCheckInterval, map[string]observability.HealthCheckFunc{
			"store": func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				_, err := store.LatestSnapshot(checkCtx)
				if errors.Is(err, statestore.ErrSnapshotNotFound) {
					return nil
				}
				return err
			},
		})
	}()

	var apiServer *api.APIServer
	if cfg.API.Enabled {
		apiServer = api.NewAPIServer(&cfg.API, session, logger)
		healthChecker.UpdateComponentHealth("api", observability.StatusHealthy, "")

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

	session.Close()

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

	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down observability server",
			"error", err.Error())
	}

	logger.Info("shutdown complete")
	return nil
}
