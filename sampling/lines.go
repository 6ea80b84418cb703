// Package sampling implements the bit-banged peripheral protocols used by the
// sensor board: ultrasonic echo timing and the parallel 8-bit ADC handshake.
// The package never touches hardware directly.  It talks to the board through
// the small capability interfaces declared in this file so that the same code
// runs against periph.io pins on the Pi and against simulated lines in tests.
package sampling

import (
	"time"

	"github.com/benbjohnson/clock"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Direction is the configured direction of a DigitalLine.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "out"
	}
	return "in"
}

// DigitalLine is a single GPIO line.  Implementations must be cheap to call
// from a spin loop: ReadInput is invoked back to back while timing a pulse.
type DigitalLine interface {
	Configure(dir Direction) error
	SetOutput(high bool) error
	ReadInput() (bool, error)
}

// Clock is a free-running square wave output, used to drive the ADC's
// internal conversion logic.
type Clock interface {
	Start(freq physic.Frequency, duty gpio.Duty) error
	Stop() error
}

// MonotonicClock supplies timestamps and sleeps.  clock.New() from
// github.com/benbjohnson/clock satisfies it and is the default.
type MonotonicClock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

var _ MonotonicClock = (clock.Clock)(nil)

func defaultClock(c MonotonicClock) MonotonicClock {
	if c == nil {
		return clock.New()
	}
	return c
}
