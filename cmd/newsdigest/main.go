package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NewsDigest/internal/app"
	"NewsDigest/internal/config"
	"NewsDigest/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run one pipeline pass and exit")
	hours := flag.Int("hours", 0, "override lookback window in hours")
	flag.Parse()

	ctx := context.Background()
	cfg := config.Load()
	if *hours > 0 {
		cfg.Ingest.LookbackHours = *hours
	}

	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	lookback := cfg.Ingest.Lookback()

	if *once {
		if err := application.RunOnce(ctx, lookback); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		_ = application.Stop(ctx)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := application.RunOnce(runCtx, lookback); err != nil {
		logger.Error("initial run failed", "error", err)
	}

	if err := application.Start(runCtx); err != nil {
		logger.Error("scheduler failed to start", "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := application.Stop(stopCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
}
