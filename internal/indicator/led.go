// Package indicator drives the operator-feedback LED that mirrors the
// connection lifecycle: lit while advertising, dark while connected.
package indicator

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// LED is a GPIO-backed indicator.
type LED struct {
	pin    gpio.PinIO
	logger *slog.Logger
}

// NewLED resolves the named pin (e.g. "GPIO17"). The indicator is cosmetic,
// so callers typically log and continue when this fails.
func NewLED(name string, logger *slog.Logger) (*LED, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return &LED{pin: pin, logger: logger}, nil
}

// Set drives the pin. Errors are logged, not returned; the indicator has no
// protocol meaning.
func (l *LED) Set(active bool) {
	if err := l.pin.Out(gpio.Level(active)); err != nil {
		l.logger.Debug("indicator: gpio write failed", "error", err)
	}
}
