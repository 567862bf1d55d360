package hw

import (
	"fmt"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lsm9ds1"
)

// motion reads the LSM9DS1 accelerometer. The IMU runs its own output data
// rate well above the sampling tick, so every read is treated as fresh.
type motion struct {
	dev *lsm9ds1.Device
}

func newMotion(bus drivers.I2C) *motion {
	return &motion{dev: lsm9ds1.New(bus)}
}

func (m *motion) Start() error {
	if err := m.dev.Configure(lsm9ds1.Configuration{
		AccelRange:      lsm9ds1.ACCEL_4G,
		AccelSampleRate: lsm9ds1.ACCEL_SR_119,
	}); err != nil {
		return fmt.Errorf("lsm9ds1 configure: %w", err)
	}
	if !m.dev.Connected() {
		return fmt.Errorf("lsm9ds1 not responding")
	}
	return nil
}

func (m *motion) Read() (float32, float32, float32, bool, error) {
	// ReadAcceleration reports micro-g per axis.
	x, y, z, err := m.dev.ReadAcceleration()
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("lsm9ds1 read: %w", err)
	}
	const ugPerG = 1000000.0
	return float32(x) / ugPerG, float32(y) / ugPerG, float32(z) / ugPerG, true, nil
}
