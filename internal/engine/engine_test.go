package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rushilpunu/cortex/internal/frame"
	"github.com/rushilpunu/cortex/internal/packet"
	"github.com/rushilpunu/cortex/internal/transport"
)

// fakeTransport records notified packets and lets tests inject events.
type fakeTransport struct {
	startErr   error
	advertises int
	notified   [][]byte
	events     chan transport.Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan transport.Event, 8)}
}

func (f *fakeTransport) Start() error { return f.startErr }
func (f *fakeTransport) Advertise() error {
	f.advertises++
	return nil
}
func (f *fakeTransport) Notify(record []byte) error {
	buf := append([]byte(nil), record...)
	f.notified = append(f.notified, buf)
	return nil
}
func (f *fakeTransport) Events() <-chan transport.Event { return f.events }

// stubSampler writes a fixed temperature and counts ticks.
type stubSampler struct {
	ticks int
	temp  float32
}

func (s *stubSampler) Init() frame.Availability {
	return frame.Availability{TempHumidity: true}
}

func (s *stubSampler) Sample(f *frame.Frame) {
	s.ticks++
	nan := float32(math.NaN())
	f.TempC = s.temp
	f.RHPct, f.PressureHPa, f.Lux, f.AccelG, f.SoundDBFS = nan, nan, nan, nan, nan
}

type stubIndicator struct {
	active bool
	sets   int
}

func (i *stubIndicator) Set(active bool) {
	i.active = active
	i.sets++
}

func newTestEngine(t *testing.T, tr transport.Transport, sampler Sampler) *Engine {
	t.Helper()
	enc, err := packet.NewEncoder(1)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	return New(sampler, enc, tr, Options{
		SamplePeriod: time.Hour, // tests drive ticks directly
		NotifyPeriod: time.Hour,
		Uptime:       func() uint32 { return 42 },
	})
}

func TestTransition(t *testing.T) {
	cases := []struct {
		state      State
		ev         lifecycleEvent
		wantState  State
		wantAction Action
	}{
		{StateIdle, evStackUp, StateAdvertising, ActionAdvertise},
		{StateAdvertising, evConnect, StateConnected, ActionNone},
		{StateConnected, evDisconnect, StateAdvertising, ActionAdvertise},
		// Ignored events leave state alone.
		{StateIdle, evConnect, StateIdle, ActionNone},
		{StateIdle, evDisconnect, StateIdle, ActionNone},
		{StateAdvertising, evDisconnect, StateAdvertising, ActionNone},
		{StateAdvertising, evStackUp, StateAdvertising, ActionNone},
		{StateConnected, evConnect, StateConnected, ActionNone},
	}
	for _, c := range cases {
		gotState, gotAction := transition(c.state, c.ev)
		if gotState != c.wantState || gotAction != c.wantAction {
			t.Errorf("transition(%v, %d): got (%v, %v), want (%v, %v)",
				c.state, c.ev, gotState, gotAction, c.wantState, c.wantAction)
		}
	}
}

func TestApply_ConnectDisconnectCycle(t *testing.T) {
	tr := newFakeTransport()
	ind := &stubIndicator{}
	e := newTestEngine(t, tr, &stubSampler{temp: 20})
	e.indicator = ind

	e.apply(evStackUp)
	if e.State() != StateAdvertising {
		t.Fatalf("after stack up: state %v", e.State())
	}
	if tr.advertises != 1 {
		t.Fatalf("advertises: got %d, want 1", tr.advertises)
	}
	if !ind.active {
		t.Error("indicator should be active while advertising")
	}

	e.apply(evConnect)
	if e.State() != StateConnected {
		t.Fatalf("after connect: state %v", e.State())
	}
	if ind.active {
		t.Error("indicator should be inactive while connected")
	}

	e.apply(evDisconnect)
	if e.State() != StateAdvertising {
		t.Fatalf("after disconnect: state %v", e.State())
	}
	if tr.advertises != 2 {
		t.Errorf("advertises after disconnect: got %d, want 2", tr.advertises)
	}
	if !ind.active {
		t.Error("indicator should be active again after disconnect")
	}
}

func TestNotifyTick_OnlyWhileConnected(t *testing.T) {
	tr := newFakeTransport()
	e := newTestEngine(t, tr, &stubSampler{temp: 20})

	e.apply(evStackUp)
	e.notifyTick()
	if len(tr.notified) != 0 {
		t.Fatalf("notified while advertising: %d records", len(tr.notified))
	}
	if e.encoder.Seq() != 0 {
		t.Fatalf("seq advanced without transmission: %d", e.encoder.Seq())
	}

	e.apply(evConnect)
	e.notifyTick()
	e.notifyTick()
	if len(tr.notified) != 2 {
		t.Fatalf("notified: got %d records, want 2", len(tr.notified))
	}

	e.apply(evDisconnect)
	e.notifyTick()
	if len(tr.notified) != 2 {
		t.Errorf("notified after disconnect: got %d records, want 2", len(tr.notified))
	}
}

func TestNotifyTick_RecordContents(t *testing.T) {
	tr := newFakeTransport()
	sampler := &stubSampler{temp: 21.5}
	e := newTestEngine(t, tr, sampler)

	e.apply(evStackUp)
	e.apply(evConnect)
	e.sampler.Sample(e.frame)
	e.notifyTick()

	if len(tr.notified) != 1 {
		t.Fatalf("notified: got %d records", len(tr.notified))
	}
	rec, err := packet.Decode(tr.notified[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.NodeID != 1 || rec.Seq != 0 || rec.TMs != 42 {
		t.Errorf("header: node=%d seq=%d t_ms=%d", rec.NodeID, rec.Seq, rec.TMs)
	}
	if rec.TempC != 21.5 {
		t.Errorf("TempC: got %v, want 21.5", rec.TempC)
	}
	if !math.IsNaN(float64(rec.SoundDBFS)) {
		t.Errorf("SoundDBFS: got %v, want NaN", rec.SoundDBFS)
	}
}

func TestSamplingContinuesWhileDisconnected(t *testing.T) {
	tr := newFakeTransport()
	sampler := &stubSampler{temp: 19}
	e := newTestEngine(t, tr, sampler)

	e.apply(evStackUp)
	// Not connected: notify ticks do nothing, sample ticks still run.
	e.sampler.Sample(e.frame)
	e.notifyTick()
	e.sampler.Sample(e.frame)
	e.notifyTick()

	if sampler.ticks != 2 {
		t.Errorf("sample ticks: got %d, want 2", sampler.ticks)
	}
	if len(tr.notified) != 0 {
		t.Errorf("notified: got %d records, want 0", len(tr.notified))
	}
	if e.frame.TempC != 19 {
		t.Errorf("frame not updated: TempC=%v", e.frame.TempC)
	}
}

func TestRun_TransportStartFailureIsFatal(t *testing.T) {
	tr := newFakeTransport()
	tr.startErr = errors.New("hci dead")
	e := newTestEngine(t, tr, &stubSampler{})

	err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from Run")
	}
	if !errors.Is(err, tr.startErr) {
		t.Errorf("Run error: got %v", err)
	}
}

func TestRun_DispatchesEventsAndStops(t *testing.T) {
	tr := newFakeTransport()
	enc, _ := packet.NewEncoder(1)
	e := New(&stubSampler{temp: 20}, enc, tr, Options{
		SamplePeriod: time.Millisecond,
		NotifyPeriod: 2 * time.Millisecond,
		Uptime:       func() uint32 { return 1 },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	tr.events <- transport.Event{Kind: transport.Connected}
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	if len(tr.notified) == 0 {
		t.Error("expected at least one notification while connected")
	}
	for i, buf := range tr.notified {
		rec, err := packet.Decode(buf)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if rec.Seq != uint16(i) {
			t.Fatalf("record %d: seq=%d", i, rec.Seq)
		}
	}
}
