// Package sensor samples the on-board sensor subsystems into a frame.Frame.
//
// Each subsystem is a narrow capability interface so the sampling core can be
// exercised with fakes, independent of real hardware. The hw subpackage
// provides the I2C-backed implementations.
package sensor

// TempHumiditySensor reads the combined temperature/humidity part.
type TempHumiditySensor interface {
	// Start probes and configures the device. Called exactly once at boot.
	Start() error
	// Read returns temperature in deg C and relative humidity in percent.
	Read() (tempC, rhPct float32, err error)
}

// PressureSensor reads barometric pressure.
type PressureSensor interface {
	Start() error
	// Read returns pressure in hPa.
	Read() (hPa float32, err error)
}

// LightSensor reads ambient light. The color engine produces samples at its
// own rate; ready reports whether a fresh sample is waiting.
type LightSensor interface {
	Start() error
	// Read returns the ambient (clear) channel as a lux approximation.
	// ready=false means no new sample since the last read; the caller keeps
	// the unavailable sentinel for this tick. The value is uncalibrated and
	// must not be treated as photometrically accurate.
	Read() (lux float32, ready bool, err error)
}

// MotionSensor reads acceleration. Same ready semantics as LightSensor.
type MotionSensor interface {
	Start() error
	// Read returns the three acceleration axes in g.
	Read() (ax, ay, az float32, ready bool, err error)
}
