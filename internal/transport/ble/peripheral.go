// Package ble implements the node-side transport on BlueZ via
// tinygo.org/x/bluetooth: one service, one Read+Notify characteristic holding
// the latest wire record.
package ble

import (
	"fmt"
	"log/slog"

	"tinygo.org/x/bluetooth"

	"github.com/rushilpunu/cortex/internal/packet"
	"github.com/rushilpunu/cortex/internal/transport"
)

// Peripheral advertises the telemetry service and notifies subscribed
// centrals. It satisfies transport.Transport.
type Peripheral struct {
	adapter   *bluetooth.Adapter
	localName string
	logger    *slog.Logger

	char   bluetooth.Characteristic
	adv    *bluetooth.Advertisement
	events chan transport.Event
}

// NewPeripheral uses the default adapter. localName is subject to truncation
// by the stack's advertising payload limit.
func NewPeripheral(localName string, logger *slog.Logger) *Peripheral {
	if logger == nil {
		logger = slog.Default()
	}
	return &Peripheral{
		adapter:   bluetooth.DefaultAdapter,
		localName: localName,
		logger:    logger,
		events:    make(chan transport.Event, 8),
	}
}

// Start enables the adapter, registers the service and configures the
// advertisement. Errors here are fatal to the node; there is no in-process
// recovery from a dead stack.
func (p *Peripheral) Start() error {
	svcUUID, err := bluetooth.ParseUUID(transport.ServiceUUID)
	if err != nil {
		return fmt.Errorf("service uuid: %w", err)
	}
	charUUID, err := bluetooth.ParseUUID(transport.CharacteristicUUID)
	if err != nil {
		return fmt.Errorf("characteristic uuid: %w", err)
	}

	// Connect events arrive on the stack's goroutine. Enqueue only; the
	// engine loop applies them. A full queue drops the event rather than
	// stalling the stack.
	p.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		kind := transport.Disconnected
		if connected {
			kind = transport.Connected
		}
		select {
		case p.events <- transport.Event{Kind: kind}:
		default:
			p.logger.Warn("ble: event queue full, dropping", "event", kind.String())
		}
	})

	p.logger.Info("ble: enabling adapter")
	if err := p.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable: %w", err)
	}

	if err := p.adapter.AddService(&bluetooth.Service{
		UUID: svcUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &p.char,
				UUID:   charUUID,
				Value:  make([]byte, packet.Size),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
		},
	}); err != nil {
		return fmt.Errorf("ble add service: %w", err)
	}

	adv := p.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    p.localName,
		ServiceUUIDs: []bluetooth.UUID{svcUUID},
	}); err != nil {
		return fmt.Errorf("ble advertisement configure: %w", err)
	}
	p.adv = adv

	p.logger.Info("ble: service registered", "local_name", p.localName, "service", transport.ServiceUUID)
	return nil
}

// Advertise (re)starts advertising. Called once after Start and again after
// every disconnect so the node never stays silently unreachable.
func (p *Peripheral) Advertise() error {
	if p.adv == nil {
		return fmt.Errorf("ble: not started")
	}
	if err := p.adv.Start(); err != nil {
		return fmt.Errorf("ble advertise: %w", err)
	}
	p.logger.Info("ble: advertising", "local_name", p.localName)
	return nil
}

// Notify writes the record to the characteristic, which pushes it to any
// subscribed central.
func (p *Peripheral) Notify(record []byte) error {
	if _, err := p.char.Write(record); err != nil {
		return fmt.Errorf("ble notify: %w", err)
	}
	return nil
}

// Events streams connect/disconnect signals for the engine loop.
func (p *Peripheral) Events() <-chan transport.Event {
	return p.events
}
