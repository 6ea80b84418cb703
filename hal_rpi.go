//go:build linux && (arm || arm64) && !disablegpio

// This file provides the Raspberry Pi implementation of the HAL using the
// periph.io library.  When cross-compiling for other platforms or when the
// build tag "disablegpio" is specified, hal.go is used instead.

package main

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/sysfs"

	"pisense/sampling"
)

// initGPIO initialises periph host state.  host.Init can safely be called
// multiple times; subsequent calls are no-ops.
func initGPIO() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("%w: %v", sampling.ErrDeviceUnavailable, err)
	}
	return nil
}

func pinByNumber(pin int) (gpio.PinIO, error) {
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return nil, fmt.Errorf("%w: GPIO%d not found", sampling.ErrDeviceUnavailable, pin)
	}
	return p, nil
}

func openLine(pin int) (sampling.DigitalLine, error) {
	p, err := pinByNumber(pin)
	if err != nil {
		return nil, err
	}
	return periphLine{pin: p}, nil
}

func openPWMClock(pin int) (sampling.Clock, error) {
	p, err := pinByNumber(pin)
	if err != nil {
		return nil, err
	}
	return pwmClock{pin: p}, nil
}

// openLEDSinks returns the sysfs LED called name and the GPIO fallback pin.
// Either may be nil when absent.
func openLEDSinks(name string, pin int) (primary, fallback ledSink) {
	if name != "" {
		if led, err := sysfs.LEDByName(name); err == nil {
			primary = led
		}
	}
	if p, err := pinByNumber(pin); err == nil {
		fallback = p
	}
	return primary, fallback
}

// bme280 reads a BME280 over I²C.
type bme280 struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

func openEnvSensor(cfg BME280Config) (EnvSensor, io.Closer, error) {
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: i2c bus %q: %v", sampling.ErrDeviceUnavailable, cfg.Bus, err)
	}
	dev, err := bmxx80.NewI2C(bus, cfg.Address, &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("%w: bme280 at %#x: %v", sampling.ErrDeviceUnavailable, cfg.Address, err)
	}
	s := &bme280{bus: bus, dev: dev}
	return s, s, nil
}

func (s *bme280) Sense() (EnvReading, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return EnvReading{}, fmt.Errorf("bme280: %w", err)
	}
	return envFromPhysic(e), nil
}

func (s *bme280) Close() error {
	return multierr.Combine(s.dev.Halt(), s.bus.Close())
}
