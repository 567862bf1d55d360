// Package frame holds the in-memory model of the latest sensor readings.
//
// A Frame is exclusively owned by the sampling loop: it is written by the
// sampler and read by the packet encoder, both from the same goroutine, so no
// locking is needed. NaN is the "no reading" sentinel and must survive
// end-to-end unchanged; it is never coerced to zero.
package frame

import "math"

// Frame is the latest known value for each measured quantity. Fields sourced
// from an unavailable or not-ready sensor hold NaN.
type Frame struct {
	TempC       float32
	RHPct       float32
	PressureHPa float32
	Lux         float32
	AccelG      float32
	SoundDBFS   float32
}

// New returns a Frame with every field unavailable.
func New() *Frame {
	nan := float32(math.NaN())
	return &Frame{
		TempC:       nan,
		RHPct:       nan,
		PressureHPa: nan,
		Lux:         nan,
		AccelG:      nan,
		SoundDBFS:   nan,
	}
}

// Availability records which sensor subsystems came up at boot. It is written
// exactly once during initialization and never retried: a subsystem that fails
// to start stays down for the lifetime of the process.
type Availability struct {
	TempHumidity bool
	Pressure     bool
	Light        bool
	Motion       bool
}
