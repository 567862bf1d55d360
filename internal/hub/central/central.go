// Package central connects to advertising nodes and subscribes to their
// telemetry notifications.
package central

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/rushilpunu/cortex/internal/transport"
)

const (
	scanWindow   = 10 * time.Second
	rescanPause  = 15 * time.Second
	staleTimeout = 10 * time.Second
)

// Handler consumes events from connected nodes.
type Handler interface {
	HandleNotification(mac string, buf []byte)
	HandleDisconnect(mac string)
}

// Listener discovers nodes by service UUID and maintains one subscription
// per node. Weak-signal devices (below MinRSSI) are skipped.
type Listener struct {
	adapter *bluetooth.Adapter
	minRSSI int16
	handler Handler
	logger  *slog.Logger

	mu        sync.Mutex
	connected map[string]bool
}

func NewListener(adapterID string, minRSSI int, handler Handler, logger *slog.Logger) *Listener {
	if adapterID == "" {
		adapterID = "hci0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		adapter:   bluetooth.NewAdapter(adapterID),
		minRSSI:   int16(minRSSI),
		handler:   handler,
		logger:    logger,
		connected: make(map[string]bool),
	}
}

// Run scans, connects and subscribes until ctx is cancelled. The scan/
// connect cycle repeats forever; nodes that come and go are picked up on the
// next pass.
func (l *Listener) Run(ctx context.Context) error {
	svcUUID, err := bluetooth.ParseUUID(transport.ServiceUUID)
	if err != nil {
		return fmt.Errorf("service uuid: %w", err)
	}
	charUUID, err := bluetooth.ParseUUID(transport.CharacteristicUUID)
	if err != nil {
		return fmt.Errorf("characteristic uuid: %w", err)
	}

	l.logger.Info("ble: enabling adapter")
	if err := l.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable: %w", err)
	}

	for {
		matches, err := l.scanOnce(ctx, svcUUID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("ble: scan failed", "error", err)
		}

		for _, m := range matches {
			addr := m.Address
			l.mu.Lock()
			already := l.connected[addr.String()]
			if !already {
				l.connected[addr.String()] = true
			}
			l.mu.Unlock()
			if already {
				continue
			}
			go l.serve(ctx, addr, svcUUID, charUUID)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rescanPause):
		}
	}
}

type match struct {
	Address bluetooth.Address
	Name    string
	RSSI    int16
}

// scanOnce collects advertising nodes for one scan window.
func (l *Listener) scanOnce(ctx context.Context, svcUUID bluetooth.UUID) ([]match, error) {
	var (
		mu      sync.Mutex
		found   []match
		seen    = make(map[string]bool)
		stopped = make(chan struct{})
	)

	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(scanWindow):
		case <-stopped:
			return
		}
		_ = l.adapter.StopScan()
	}()

	err := l.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		if !r.HasServiceUUID(svcUUID) {
			return
		}
		if r.RSSI < l.minRSSI {
			l.logger.Debug("ble: ignoring weak signal",
				"addr", r.Address.String(), "rssi", r.RSSI, "min_rssi", l.minRSSI)
			return
		}
		mu.Lock()
		if !seen[r.Address.String()] {
			seen[r.Address.String()] = true
			found = append(found, match{Address: r.Address, Name: r.LocalName(), RSSI: r.RSSI})
		}
		mu.Unlock()
	})
	close(stopped)
	if err != nil {
		return nil, fmt.Errorf("ble scan: %w", err)
	}

	l.logger.Info("ble: scan finished", "nodes", len(found))
	return found, nil
}

// serve owns one node connection: subscribe, forward notifications, tear
// down on cancellation or silence.
func (l *Listener) serve(ctx context.Context, addr bluetooth.Address, svcUUID, charUUID bluetooth.UUID) {
	mac := addr.String()
	defer func() {
		l.mu.Lock()
		delete(l.connected, mac)
		l.mu.Unlock()
		l.handler.HandleDisconnect(mac)
	}()

	l.logger.Info("ble: connecting", "addr", mac)
	device, err := l.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		l.logger.Warn("ble: connect failed", "addr", mac, "error", err)
		return
	}
	defer func() {
		if err := device.Disconnect(); err != nil {
			l.logger.Debug("ble: disconnect", "addr", mac, "error", err)
		}
	}()

	services, err := device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil || len(services) == 0 {
		l.logger.Warn("ble: service discovery failed", "addr", mac, "error", err)
		return
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{charUUID})
	if err != nil || len(chars) == 0 {
		l.logger.Warn("ble: characteristic discovery failed", "addr", mac, "error", err)
		return
	}

	activity := make(chan struct{}, 1)
	if err := chars[0].EnableNotifications(func(buf []byte) {
		select {
		case activity <- struct{}{}:
		default:
		}
		l.handler.HandleNotification(mac, buf)
	}); err != nil {
		l.logger.Warn("ble: subscribe failed", "addr", mac, "error", err)
		return
	}
	l.logger.Info("ble: subscribed", "addr", mac)

	// A connected node notifies every notification period; prolonged
	// silence means the link died without a clean disconnect.
	timer := time.NewTimer(staleTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-activity:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(staleTimeout)
		case <-timer.C:
			l.logger.Warn("ble: node silent, dropping connection", "addr", mac)
			return
		}
	}
}
