// Package engine runs the node's sampling/encoding/transmission loop.
//
// One goroutine owns everything: the frame, the sequence counter and the
// lifecycle state. Stack callbacks only enqueue events; the loop dispatches
// queued events before any timer work in the same iteration, so encoding can
// never observe a half-written frame and lifecycle transitions cannot race.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rushilpunu/cortex/internal/frame"
	"github.com/rushilpunu/cortex/internal/packet"
	"github.com/rushilpunu/cortex/internal/transport"
)

// Sampler is what the engine needs from the sensor layer.
type Sampler interface {
	Init() frame.Availability
	Sample(*frame.Frame)
}

// Indicator mirrors lifecycle state for operator feedback (an LED): active
// while advertising, inactive while connected. No protocol meaning.
type Indicator interface {
	Set(active bool)
}

// Options configures an Engine. Periods default to 100ms sampling and 200ms
// notification; sampling intentionally runs faster than notification so the
// radio duty cycle is bounded independently of sensor responsiveness.
type Options struct {
	SamplePeriod time.Duration
	NotifyPeriod time.Duration
	Indicator    Indicator    // optional
	Uptime       func() uint32 // uptime in ms; defaults to wall-clock since New
	Logger       *slog.Logger
}

// Engine ties sampler, encoder and transport together.
type Engine struct {
	sampler Sampler
	encoder *packet.Encoder
	tr      transport.Transport

	frame *frame.Frame
	state State

	samplePeriod time.Duration
	notifyPeriod time.Duration
	indicator    Indicator
	uptime       func() uint32
	logger       *slog.Logger
}

// New builds an engine. The frame starts all-unavailable and the sequence
// counter at 0, the boot condition.
func New(sampler Sampler, encoder *packet.Encoder, tr transport.Transport, opts Options) *Engine {
	if opts.SamplePeriod <= 0 {
		opts.SamplePeriod = 100 * time.Millisecond
	}
	if opts.NotifyPeriod <= 0 {
		opts.NotifyPeriod = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Uptime == nil {
		boot := time.Now()
		opts.Uptime = func() uint32 {
			// Wraps modulo 2^32 (~49.7 days); consumers treat it as relative.
			return uint32(time.Since(boot).Milliseconds())
		}
	}
	return &Engine{
		sampler:      sampler,
		encoder:      encoder,
		tr:           tr,
		frame:        frame.New(),
		state:        StateIdle,
		samplePeriod: opts.SamplePeriod,
		notifyPeriod: opts.NotifyPeriod,
		indicator:    opts.Indicator,
		uptime:       opts.Uptime,
		logger:       opts.Logger,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Run brings up the transport, probes the sensors once, then loops until ctx
// is cancelled. A transport start failure is returned as-is: the caller
// treats it as fatal, there is no in-process recovery.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.tr.Start(); err != nil {
		return fmt.Errorf("transport start: %w", err)
	}
	e.apply(evStackUp)

	avail := e.sampler.Init()
	e.logger.Info("engine: sensors probed",
		"temp_humidity", avail.TempHumidity,
		"pressure", avail.Pressure,
		"light", avail.Light,
		"motion", avail.Motion,
	)

	sampleTicker := time.NewTicker(e.samplePeriod)
	defer sampleTicker.Stop()
	notifyTicker := time.NewTicker(e.notifyPeriod)
	defer notifyTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.tr.Events():
			e.apply(toLifecycleEvent(ev))
		case <-sampleTicker.C:
			e.drainEvents()
			e.sampler.Sample(e.frame)
		case <-notifyTicker.C:
			e.drainEvents()
			e.notifyTick()
		}
	}
}

// drainEvents dispatches every queued stack event before timer work runs, so
// a tick always sees settled lifecycle state.
func (e *Engine) drainEvents() {
	for {
		select {
		case ev := <-e.tr.Events():
			e.apply(toLifecycleEvent(ev))
		default:
			return
		}
	}
}

func (e *Engine) apply(ev lifecycleEvent) {
	next, action := transition(e.state, ev)
	if next != e.state {
		e.logger.Info("engine: lifecycle", "from", e.state.String(), "to", next.String())
	}
	e.state = next

	if action == ActionAdvertise {
		if err := e.tr.Advertise(); err != nil {
			e.logger.Error("engine: re-advertise failed", "error", err)
		}
	}
	if e.indicator != nil {
		e.indicator.Set(e.state == StateAdvertising)
	}
}

// notifyTick encodes and transmits the current frame, but only while a
// central is attached. Any other state skips silently, without encoding, so
// the sequence counter advances once per transmitted record. Sampling
// carries on regardless of who is listening.
func (e *Engine) notifyTick() {
	if e.state != StateConnected {
		return
	}
	record := e.encoder.Encode(e.frame, e.uptime())
	if err := e.tr.Notify(record); err != nil {
		e.logger.Warn("engine: notify failed", "seq", e.encoder.Seq()-1, "error", err)
	}
}
