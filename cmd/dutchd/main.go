// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radstarter/dutchd/pkg/amm"
	"github.com/radstarter/dutchd/pkg/api"
	"github.com/radstarter/dutchd/pkg/asset"
	"github.com/radstarter/dutchd/pkg/auction"
	"github.com/radstarter/dutchd/pkg/log"
	"github.com/radstarter/dutchd/pkg/lpadapter"
	"github.com/radstarter/dutchd/pkg/metric"
	"github.com/radstarter/dutchd/pkg/storage"
	"github.com/radstarter/dutchd/pkg/tick"
)

var (
	port         = flag.Int("port", 8000, "HTTP port")
	logLevel     = flag.String("log-level", "info", "Log level")
	dbType       = flag.String("db", "badger", "Database engine: badger, memory")
	dataDir      = flag.String("data-dir", "/tmp/dutchd", "Data directory")
	currencyName = flag.String("currency-name", "RadStable", "Reference currency name")
	currencySym  = flag.String("currency-symbol", "RSD", "Reference currency symbol")
	tickInterval = flag.Duration("tick-interval", time.Minute, "Wall time per logical tick")

	// Version info
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	flag.Parse()

	fmt.Printf("RadStarter Daemon (dutchd) %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)

	logger := log.NewWithLevel(*logLevel)
	defer logger.Sync()

	store, err := storage.NewStore(*dbType, *dataDir)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	metrics, err := metric.NewMetrics()
	if err != nil {
		fmt.Printf("Failed to create metrics: %v\n", err)
		os.Exit(1)
	}

	currency := asset.NewResource(*currencyName, *currencySym)
	ticks := tick.NewManual(0)
	adapter := lpadapter.New(amm.NewMemoryFactory(), logger)

	controller, operator, err := auction.New(currency, ticks, adapter, store, metrics, logger)
	if err != nil {
		fmt.Printf("Failed to create controller: %v\n", err)
		os.Exit(1)
	}

	// The operator token stays with the daemon operator; surface it once
	// at boot so admin calls can present it.
	logger.Info("operator credential",
		zap.String("resource_id", operator.TypeID().String()))

	server := api.NewServer(controller, metrics, time.Second, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: server.Router(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", *port))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Advance the logical clock on a wall timer.
	stopTicks := make(chan struct{})
	go func() {
		ticker := time.NewTicker(*tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopTicks:
				return
			case <-ticker.C:
				now := ticks.Advance(1)
				controller.Checkpoint()
				logger.Debug("tick", zap.Uint64("now", now))
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	close(stopTicks)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
	}

	fmt.Println("Daemon stopped")
}
