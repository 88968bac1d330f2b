// ABOUTME: This file is the entrypoint wiring the sync bridge daemon together
// ABOUTME: Builds the store, driver, and services, then runs until SIGINT/SIGTERM

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"sync-bridge/config"
	"sync-bridge/driver"
	"sync-bridge/repository"
	"sync-bridge/service"
	"sync-bridge/utils"
)

func main() {
	healthCheck := flag.Bool("health-check", false, "Probe the running bridge's sync status and exit")
	flag.Parse()

	// Setup structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if *healthCheck {
		performHealthCheckWithOutput()
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Sync bridge starting",
		"service", cfg.ServiceName,
		"backend", cfg.Backend.BaseURL,
		"realm", cfg.Backend.Realm,
		"sync_interval", cfg.Sync.Interval,
		"entity_types", cfg.Sync.EntityTypes)

	if err := run(cfg, logger); err != nil {
		logger.Error("Sync bridge failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Sync bridge stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.OpenBoltStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open durable store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close durable store", "error", err)
		}
	}()

	sessionRepo := repository.NewKVSessionRepository(store)
	identityRepo := repository.NewKVIdentityRepository(store)
	queueRepo := repository.NewKVQueueRepository(store)
	recordRepo := repository.NewKVRecordRepository(store)
	stateRepo := repository.NewKVSyncStateRepository(store, logger)
	deadLetterRepo := repository.NewKVDeadLetterRepository(store, logger)

	monitor := utils.NewMonitor(nil, logger)
	defer monitor.Close()

	rpcClient := driver.NewClient(cfg.Backend.BaseURL, cfg.Backend.Realm, logger)

	sessions := service.NewSessionManagerWithBuffer(
		sessionRepo,
		identityRepo,
		rpcClient,
		service.ServiceCredentials{
			PrincipalID: cfg.Backend.ServicePrincipalID,
			Secret:      cfg.Backend.ServiceSecret,
		},
		logger,
		cfg.Session.RefreshBuffer,
	)
	sessions.SetMonitor(monitor)

	gateway := service.NewRPCGateway(sessions, rpcClient, logger)
	gateway.SetCallTimeout(cfg.Gateway.Timeout)
	gateway.SetRateLimit(rate.Limit(cfg.Gateway.RateLimit), cfg.Gateway.RateBurst)
	retryConfig := *service.DefaultRetryConfig()
	retryConfig.MaxRetries = cfg.Gateway.MaxRetries
	gateway.SetRetryConfig(retryConfig)
	gateway.SetMonitor(monitor)

	queue := service.NewMutationQueue(queueRepo, deadLetterRepo, gateway, logger)
	queue.SetBatchSize(cfg.Queue.BatchSize)
	queue.SetRetryLimit(cfg.Queue.MaxRetries)
	queue.SetMonitor(monitor)

	coordinator := service.NewSyncCoordinator(queue, gateway, recordRepo, stateRepo, cfg.Sync.EntityTypes, logger)
	coordinator.SetMonitor(monitor)

	boot := service.NewBootstrap(rpcClient, sessions, coordinator, service.BootstrapConfig{
		RequiredEntityTypes: cfg.Sync.RequiredEntityTypes,
		WarmEntityTypes:     cfg.Sync.WarmEntityTypes,
		SyncInterval:        cfg.Sync.Interval,
	}, logger)

	if err := boot.Initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	go statusFileLoop(ctx, coordinator, statusFilePath(cfg.Store.Path), cfg.Sync.Interval, logger)

	logger.Info("Sync bridge running")
	<-ctx.Done()

	logger.Info("Shutting down")
	coordinator.Stop()
	return nil
}
