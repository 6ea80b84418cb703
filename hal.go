//go:build !linux || !(arm || arm64) || disablegpio

package main

// This file is the hardware abstraction layer used off the Pi.  Nothing can
// be opened, so every reading reports sampling.ErrDeviceUnavailable, but the
// HTTP server and the rest of the program still run on a desktop machine.
// hal_rpi.go holds the periph.io implementation.

import (
	"fmt"
	"io"

	"pisense/sampling"
)

// initGPIO performs any global initialisation required to access GPIO pins.
func initGPIO() error {
	return nil
}

func openLine(pin int) (sampling.DigitalLine, error) {
	return nil, fmt.Errorf("%w: GPIO%d: no GPIO support in this build", sampling.ErrDeviceUnavailable, pin)
}

func openPWMClock(pin int) (sampling.Clock, error) {
	return nil, fmt.Errorf("%w: GPIO%d: no PWM support in this build", sampling.ErrDeviceUnavailable, pin)
}

func openLEDSinks(name string, pin int) (primary, fallback ledSink) {
	return nil, nil
}

func openEnvSensor(cfg BME280Config) (EnvSensor, io.Closer, error) {
	return nil, nil, fmt.Errorf("%w: no I²C support in this build", sampling.ErrDeviceUnavailable)
}
