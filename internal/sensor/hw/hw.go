// Package hw binds the sensor capability interfaces to real I2C devices:
// BME280 (temperature/humidity/pressure), APDS-9960 (ambient light) and
// LSM9DS1 (acceleration).
package hw

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/rushilpunu/cortex/internal/sensor"
)

// BME280Addr is the default I2C address of the BME280 breakout.
const BME280Addr = 0x76

// Suite is the full on-board sensor set. Each field satisfies the matching
// capability interface in the sensor package; the sampler starts them
// individually, so one dead device does not take the others down.
type Suite struct {
	TempHumidity sensor.TempHumiditySensor
	Pressure     sensor.PressureSensor
	Light        sensor.LightSensor
	Motion       sensor.MotionSensor

	bus i2c.BusCloser
}

// Open initializes the host and opens the I2C bus ("" selects the default
// bus, usually /dev/i2c-1). Opening the bus is fatal; probing the individual
// devices is deferred to each subsystem's Start.
func Open(busName string) (*Suite, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", busName, err)
	}

	shared := &bme{bus: bus, addr: BME280Addr}
	return &Suite{
		TempHumidity: &bmeTempHum{shared},
		Pressure:     &bmePressure{shared},
		Light:        newLight(bus),
		Motion:       newMotion(bus),
		bus:          bus,
	}, nil
}

// Close releases the I2C bus.
func (s *Suite) Close() error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Close()
}

// bme is the shared BME280 handle. Both the temp/humidity and the pressure
// subsystems sit on the same chip, so whichever Start runs first probes it.
type bme struct {
	bus  i2c.Bus
	addr uint16
	dev  *bmxx80.Dev
}

func (b *bme) start() error {
	if b.dev != nil {
		return nil
	}
	dev, err := bmxx80.NewI2C(b.bus, b.addr, &bmxx80.DefaultOpts)
	if err != nil {
		return fmt.Errorf("bme280 at 0x%02x: %w", b.addr, err)
	}
	b.dev = dev
	return nil
}

func (b *bme) sense() (physic.Env, error) {
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return physic.Env{}, fmt.Errorf("bme280 sense: %w", err)
	}
	return env, nil
}

type bmeTempHum struct{ *bme }

func (t *bmeTempHum) Start() error { return t.start() }

func (t *bmeTempHum) Read() (float32, float32, error) {
	env, err := t.sense()
	if err != nil {
		return 0, 0, err
	}
	// env.Humidity is fixed point at 0.00001 %rH.
	return float32(env.Temperature.Celsius()), float32(env.Humidity) / 100000.0, nil
}

type bmePressure struct{ *bme }

func (p *bmePressure) Start() error { return p.start() }

func (p *bmePressure) Read() (float32, error) {
	env, err := p.sense()
	if err != nil {
		return 0, err
	}
	// env.Pressure is in nano Pascal; 1 hPa = 1e7 nPa.
	return float32(float64(env.Pressure) / 10000000.0), nil
}
