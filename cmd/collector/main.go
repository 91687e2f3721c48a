package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"hvac-collector/internal/api"
	"hvac-collector/internal/collector"
	"hvac-collector/internal/config"
	"hvac-collector/internal/metrics"
	"hvac-collector/internal/statestore"

	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	anonymousID, err := cfg.EnsureAnonymousID()
	if err != nil {
		logger.Fatalf("Failed to resolve anonymous id: %v", err)
	}
	logger.Infof("Starting HVAC collector with anonymous id %s...", anonymousID[:8])

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := statestore.NewStore(cfg, logger)
	m := metrics.New()

	coll := collector.New(cfg, logger, store, m)
	store.SetUserInputHandler(coll.UserInputHandler())

	statusServer := api.NewServer(cfg, logger, coll, m)

	if err := store.Connect(); err != nil {
		logger.Fatalf("Failed to connect to MQTT: %v", err)
	}
	defer store.Disconnect()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		coll.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := statusServer.Start(ctx); err != nil {
			logger.Errorf("Status API error: %v", err)
			cancel()
		}
	}()

	logger.Info("All services started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down...")
	cancel()

	wg.Wait()
	logger.Info("Shutdown complete")
}
