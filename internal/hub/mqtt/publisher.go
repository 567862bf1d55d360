// Package mqtt publishes accepted telemetry records for live consumers
// (dashboards, automations) over an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rushilpunu/cortex/internal/config"
	"github.com/rushilpunu/cortex/internal/packet"
)

// Telemetry is the JSON shape published per record. Nil pointers (NaN on the
// wire) are omitted entirely; "no data" is never rendered as zero.
type Telemetry struct {
	NodeID      uint8     `json:"node_id"`
	Seq         uint16    `json:"seq"`
	Timestamp   time.Time `json:"timestamp"`
	UptimeMs    uint32    `json:"t_ms"`
	TempC       *float64  `json:"temp_c,omitempty"`
	RHPct       *float64  `json:"rh_pct,omitempty"`
	PressureHPa *float64  `json:"pressure_hpa,omitempty"`
	Lux         *float64  `json:"lux,omitempty"`
	AccelG      *float64  `json:"accel_g,omitempty"`
	SoundDBFS   *float64  `json:"sound_dbfs,omitempty"`
}

// FromRecord converts a decoded wire record, mapping NaN to nil.
func FromRecord(rec *packet.Record, ts time.Time) Telemetry {
	return Telemetry{
		NodeID:      rec.NodeID,
		Seq:         rec.Seq,
		Timestamp:   ts,
		UptimeMs:    rec.TMs,
		TempC:       floatPtr(rec.TempC),
		RHPct:       floatPtr(rec.RHPct),
		PressureHPa: floatPtr(rec.PressureHPa),
		Lux:         floatPtr(rec.Lux),
		AccelG:      floatPtr(rec.AccelG),
		SoundDBFS:   floatPtr(rec.SoundDBFS),
	}
}

func floatPtr(v float32) *float64 {
	if math.IsNaN(float64(v)) {
		return nil
	}
	f := float64(v)
	return &f
}

// Publisher wraps the paho client with connection state tracking.
type Publisher struct {
	client    mqtt.Client
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.HubConfig, logger *slog.Logger) *Publisher {
	p := &Publisher{
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits for the initial broker connection, respecting ctx and
// Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

// PublishTelemetry publishes one record to cortex/<node_id>/telemetry.
func (p *Publisher) PublishTelemetry(t Telemetry) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := fmt.Sprintf("cortex/%d/telemetry", t.NodeID)

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	token := p.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish telemetry: %w", token.Error())
	}

	p.logger.Debug("published telemetry", "topic", topic, "node_id", t.NodeID, "seq", t.Seq)
	return nil
}

// IsConnected reports broker connectivity.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the publisher. Idempotent.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
