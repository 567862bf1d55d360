package sensor

import (
	"log/slog"
	"math"

	"github.com/rushilpunu/cortex/internal/frame"
)

// Sampler owns the frame and overwrites it once per sampling tick. A nil
// sensor is treated the same as one whose Start failed: the subsystem is
// simply absent.
type Sampler struct {
	tempHum  TempHumiditySensor
	pressure PressureSensor
	light    LightSensor
	motion   MotionSensor

	avail  frame.Availability
	logger *slog.Logger
}

// NewSampler wires the sensor suite. Init must be called before Sample.
func NewSampler(th TempHumiditySensor, p PressureSensor, l LightSensor, m MotionSensor, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		tempHum:  th,
		pressure: p,
		light:    l,
		motion:   m,
		logger:   logger,
	}
}

// Init starts each subsystem exactly once and records the outcome. Failures
// are logged and leave the subsystem permanently unavailable; there is no
// retry, so timing stays deterministic. Init never returns an error: a node
// with dead sensors still samples and transmits NaN.
func (s *Sampler) Init() frame.Availability {
	s.avail.TempHumidity = s.startOne("temp_humidity", s.tempHum)
	s.avail.Pressure = s.startOne("pressure", s.pressure)
	s.avail.Light = s.startOne("light", s.light)
	s.avail.Motion = s.startOne("motion", s.motion)
	return s.avail
}

type starter interface{ Start() error }

func (s *Sampler) startOne(name string, dev starter) bool {
	if dev == nil {
		s.logger.Warn("sampler: subsystem absent", "subsystem", name)
		return false
	}
	if err := dev.Start(); err != nil {
		s.logger.Warn("sampler: subsystem failed to start, readings will be unavailable",
			"subsystem", name, "error", err)
		return false
	}
	s.logger.Info("sampler: subsystem up", "subsystem", name)
	return true
}

// Availability reports the boot-time probe result.
func (s *Sampler) Availability() frame.Availability { return s.avail }

// Sample overwrites f with the readings for this tick. Unavailable
// subsystems and failed reads produce NaN; sound is always NaN (no
// microphone pipeline is wired in).
func (s *Sampler) Sample(f *frame.Frame) {
	nan := float32(math.NaN())

	f.TempC, f.RHPct = nan, nan
	if s.avail.TempHumidity {
		if t, h, err := s.tempHum.Read(); err == nil {
			f.TempC, f.RHPct = t, h
		} else {
			s.logger.Debug("sampler: temp/humidity read failed", "error", err)
		}
	}

	f.PressureHPa = nan
	if s.avail.Pressure {
		if p, err := s.pressure.Read(); err == nil {
			f.PressureHPa = p
		} else {
			s.logger.Debug("sampler: pressure read failed", "error", err)
		}
	}

	f.Lux = nan
	if s.avail.Light {
		if lux, ready, err := s.light.Read(); err == nil && ready {
			f.Lux = lux
		} else if err != nil {
			s.logger.Debug("sampler: light read failed", "error", err)
		}
	}

	f.AccelG = nan
	if s.avail.Motion {
		if ax, ay, az, ready, err := s.motion.Read(); err == nil && ready {
			f.AccelG = Magnitude(ax, ay, az)
		} else if err != nil {
			s.logger.Debug("sampler: motion read failed", "error", err)
		}
	}

	f.SoundDBFS = nan
}

// Magnitude returns sqrt(ax^2 + ay^2 + az^2).
func Magnitude(ax, ay, az float32) float32 {
	x, y, z := float64(ax), float64(ay), float64(az)
	return float32(math.Sqrt(x*x + y*y + z*z))
}
