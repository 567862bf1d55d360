package hw

import (
	"fmt"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/apds9960"
)

// light reads the APDS-9960 color engine. The clear channel is used as a lux
// approximation; it is uncalibrated, callers must not assume photometric
// accuracy.
type light struct {
	dev apds9960.Device
}

// newLight wires the driver to the bus. A periph i2c.Bus satisfies
// drivers.I2C directly (same Tx signature).
func newLight(bus drivers.I2C) *light {
	return &light{dev: apds9960.New(bus)}
}

func (l *light) Start() error {
	l.dev.Configure(apds9960.Configuration{})
	if !l.dev.Connected() {
		return fmt.Errorf("apds9960 not responding")
	}
	l.dev.EnableColor()
	return nil
}

func (l *light) Read() (float32, bool, error) {
	if !l.dev.ColorAvailable() {
		return 0, false, nil
	}
	_, _, _, clear := l.dev.ReadColor()
	return float32(clear), true, nil
}
