package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/rushilpunu/cortex/internal/config"
	"github.com/rushilpunu/cortex/internal/hub/central"
	"github.com/rushilpunu/cortex/internal/hub/mqtt"
	"github.com/rushilpunu/cortex/internal/hub/store"
)

const mqttConnectTimeout = 10 * time.Second

// Run wires the hub together: sqlite store, MQTT publisher and the BLE
// central loop. It blocks until ctx is cancelled or the central loop fails.
func Run(ctx context.Context, cfg config.HubConfig, logger *slog.Logger) error {
	db, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(db); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := store.Migrate(db); err != nil {
		return err
	}

	repo := store.NewRepository(db)

	pub := mqtt.NewPublisher(cfg, logger)
	connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	if err := pub.Connect(connectCtx); err != nil {
		// Not fatal: the client retries in the background and publishing
		// resumes once the broker is reachable. Persistence keeps working
		// either way.
		logger.Warn("mqtt broker unavailable, continuing without it", "error", err)
	}
	cancel()
	defer pub.Disconnect()

	handler := central.NewRecordHandler(repo, pub, logger)
	listener := central.NewListener(cfg.BLEAdapter, cfg.MinRSSI, handler, logger)
	return listener.Run(ctx)
}
