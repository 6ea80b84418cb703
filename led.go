package main

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"

	"pisense/sampling"
)

// ledSink is the part of gpio.PinIO the LED needs.  Both the sysfs LED and
// a plain GPIO pin satisfy it.
type ledSink interface {
	Out(l gpio.Level) error
	Read() gpio.Level
}

// LED drives the status LED.  The sysfs LED is preferred; the GPIO pin is
// used when the sysfs LED is missing or refuses the write.
type LED struct {
	mu       sync.Mutex
	primary  ledSink
	fallback ledSink
	// active is the sink that took the last successful write.
	active ledSink
}

// NewLED returns an LED.  Either sink may be nil.
func NewLED(primary, fallback ledSink) *LED {
	return &LED{primary: primary, fallback: fallback}
}

// Set switches the LED on or off.
func (l *LED) Set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.primary != nil {
		if err = l.primary.Out(gpio.Level(on)); err == nil {
			l.active = l.primary
			return nil
		}
	}
	if l.fallback != nil {
		if ferr := l.fallback.Out(gpio.Level(on)); ferr != nil {
			return multierr.Append(err, ferr)
		}
		l.active = l.fallback
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: no LED", sampling.ErrDeviceUnavailable)
}

// Status reports "on", "off" or "unknown" when there is no LED to read.
// It reads the sink that took the last write, if any.
func (l *LED) Status() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	sink := l.active
	if sink == nil {
		sink = l.primary
	}
	if sink == nil {
		sink = l.fallback
	}
	if sink == nil {
		return "unknown"
	}
	if sink.Read() == gpio.High {
		return "on"
	}
	return "off"
}
