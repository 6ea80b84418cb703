package main

import (
	"fmt"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"pisense/sampling"
)

// pinError marks a failed pin operation as ErrDeviceUnavailable while keeping
// the driver's error in the chain.
func pinError(pin gpio.PinIO, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %w", sampling.ErrDeviceUnavailable, pin, op, err)
}

// periphLine adapts a periph pin to sampling.DigitalLine.
type periphLine struct {
	pin gpio.PinIO
}

// Configure switches the pin direction.  Outputs come up low; callers drive
// the idle level right after.
func (l periphLine) Configure(dir sampling.Direction) error {
	if dir == sampling.Output {
		return pinError(l.pin, "as "+dir.String(), l.pin.Out(gpio.Low))
	}
	return pinError(l.pin, "as "+dir.String(), l.pin.In(gpio.PullNoChange, gpio.NoEdge))
}

func (l periphLine) SetOutput(high bool) error {
	return pinError(l.pin, "set "+gpio.Level(high).String(), l.pin.Out(gpio.Level(high)))
}

func (l periphLine) ReadInput() (bool, error) {
	return bool(l.pin.Read()), nil
}

// pwmClock drives the ADC conversion clock from a hardware PWM pin.
type pwmClock struct {
	pin gpio.PinIO
}

func (c pwmClock) Start(f physic.Frequency, duty gpio.Duty) error {
	return pinError(c.pin, "pwm", c.pin.PWM(duty, f))
}

// Stop halts the PWM and parks the pin low.
func (c pwmClock) Stop() error {
	return pinError(c.pin, "halt", multierr.Combine(c.pin.Halt(), c.pin.Out(gpio.Low)))
}
