package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lighthouse/internal/config"
	"lighthouse/internal/logging"
	"lighthouse/internal/services"
)

func main() {
	runProcessor := flag.Bool("processor", false, "Run the change processor")
	runGateway := flag.Bool("gateway", false, "Run the HTTP gateway")
	runSimulator := flag.Bool("simulator", false, "Run the activity simulator")
	runAll := flag.Bool("all", false, "Run all services")
	flag.Parse()

	// Default to everything the configuration enables when no flags are set.
	if *runAll || (!*runProcessor && !*runGateway && !*runSimulator) {
		*runProcessor = true
		*runGateway = true
		*runSimulator = true
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Shutdown()

	opts := services.Options{
		RunProcessor: *runProcessor,
		RunGateway:   *runGateway && cfg.Gateway.Enabled,
		RunSimulator: *runSimulator && cfg.Simulator.Enabled,
	}
	slog.Info("starting lighthouse",
		"processor", opts.RunProcessor,
		"gateway", opts.RunGateway,
		"simulator", opts.RunSimulator,
		"storage", cfg.Storage.Mode)

	mgr := services.NewManager(cfg, opts, slog.Default())

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()
	if err := mgr.Init(initCtx); err != nil {
		slog.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if err := mgr.Start(bgCtx); err != nil {
		slog.Error("failed to start services", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	bgCancel()
	mgr.Shutdown(shutdownCtx)
	slog.Info("all services stopped")
}
