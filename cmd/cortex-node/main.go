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
	"github.com/rushilpunu/cortex/internal/engine"
	"github.com/rushilpunu/cortex/internal/indicator"
	"github.com/rushilpunu/cortex/internal/logging"
	"github.com/rushilpunu/cortex/internal/packet"
	"github.com/rushilpunu/cortex/internal/sensor"
	"github.com/rushilpunu/cortex/internal/sensor/hw"
	"github.com/rushilpunu/cortex/internal/transport/ble"
)

const appName = "cortex-node"

// Overridable with -ldflags "-X main.version=... -X main.nodeID=..." so a
// fleet build can bake per-device identity into the binary. NODE_ID and
// LOCAL_NAME env vars take precedence at runtime.
var (
	version   = "dev"
	nodeID    = "0"
	localName = "cortex-node"
)

func main() {
	cfg, err := config.LoadNodeFromEnv(nodeID, localName)
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
		"node_id", cfg.NodeID,
		"local_name", cfg.LocalName,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("shutting down")
}

func run(ctx context.Context, cfg config.NodeConfig, logger *slog.Logger) error {
	suite, err := hw.Open(cfg.I2CBus)
	if err != nil {
		// A node with no reachable bus still advertises and transmits; every
		// field rides the unavailable sentinel until hardware shows up on a
		// later boot.
		logger.Warn("i2c bus unavailable, running without sensors", "bus", cfg.I2CBus, "error", err)
		suite = &hw.Suite{}
	}
	defer func() {
		if err := suite.Close(); err != nil {
			logger.Error("closing i2c bus", "error", err)
		}
	}()

	sampler := sensor.NewSampler(suite.TempHumidity, suite.Pressure, suite.Light, suite.Motion, logger)

	enc, err := packet.NewEncoder(cfg.NodeID)
	if err != nil {
		return err
	}

	var ind engine.Indicator
	if led, err := indicator.NewLED(cfg.LEDPin, logger); err != nil {
		logger.Warn("status led unavailable", "pin", cfg.LEDPin, "error", err)
	} else {
		ind = led
	}

	tr := ble.NewPeripheral(cfg.LocalName, logger)

	eng := engine.New(sampler, enc, tr, engine.Options{
		SamplePeriod: cfg.SamplePeriod,
		NotifyPeriod: cfg.NotifyPeriod,
		Indicator:    ind,
		Logger:       logger,
	})
	return eng.Run(ctx)
}
