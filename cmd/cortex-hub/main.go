package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rushilpunu/cortex/internal/config"
	"github.com/rushilpunu/cortex/internal/hub/app"
	"github.com/rushilpunu/cortex/internal/logging"
)

const appName = "cortex-hub"

// Default version is "dev" if not set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadHubFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppEnv, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"adapter", cfg.BLEAdapter,
		"min_rssi", cfg.MinRSSI,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("shutting down")
}
