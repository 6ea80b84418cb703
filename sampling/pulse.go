package sampling

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultTriggerWidth is the trigger pulse an HC-SR04 style module needs
	// to start a ranging cycle.
	DefaultTriggerWidth = 10 * time.Microsecond
	// DefaultEchoTimeout bounds a measurement from the end of the trigger
	// to the falling edge.  The longest echo an HC-SR04 produces (nothing in
	// range) is about 38ms.
	DefaultEchoTimeout = 100 * time.Millisecond
)

// PulseMeasurement holds the two edges of an echo pulse.
type PulseMeasurement struct {
	Start time.Time
	Stop  time.Time
}

// Elapsed returns the pulse width.
func (m PulseMeasurement) Elapsed() time.Duration {
	return m.Stop.Sub(m.Start)
}

// PulseTimerConfig tunes a PulseTimer.  Zero values select the defaults.
type PulseTimerConfig struct {
	TriggerWidth time.Duration `yaml:"trigger_width"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PulseTimer times the echo pulse of an ultrasonic ranging module by spinning
// on the echo line.  A PulseTimer owns its two lines: concurrent calls are
// serialised so that two measurements never share a trigger.
type PulseTimer struct {
	mu      sync.Mutex
	trigger DigitalLine
	echo    DigitalLine
	clock   MonotonicClock

	triggerWidth time.Duration
	timeout      time.Duration
}

// NewPulseTimer returns a timer for the given lines.  The lines must already
// be configured (trigger as output, echo as input).  A nil clk selects the
// wall clock.
func NewPulseTimer(trigger, echo DigitalLine, clk MonotonicClock, cfg PulseTimerConfig) *PulseTimer {
	if cfg.TriggerWidth <= 0 {
		cfg.TriggerWidth = DefaultTriggerWidth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEchoTimeout
	}
	return &PulseTimer{
		trigger:      trigger,
		echo:         echo,
		clock:        defaultClock(clk),
		triggerWidth: cfg.TriggerWidth,
		timeout:      cfg.Timeout,
	}
}

// MeasureEchoPulse fires the trigger and times the resulting echo pulse.
//
// Start is the last timestamp taken while the echo line still read low and
// Stop the last taken while it still read high.  Both are re-stamped on every
// spin iteration and the loops never sleep, which keeps the edge error to a
// single iteration.  Every wait is bounded by the configured timeout and
// reports ErrEchoTimeout rather than hanging on a disconnected sensor.
func (t *PulseTimer) MeasureEchoPulse() (PulseMeasurement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A pulse left over from an earlier cycle must finish before we trigger,
	// otherwise its falling edge would be timed as ours.
	if err := t.waitEchoLow(); err != nil {
		return PulseMeasurement{}, err
	}

	if err := t.trigger.SetOutput(true); err != nil {
		return PulseMeasurement{}, fmt.Errorf("raise trigger: %w", err)
	}
	t.clock.Sleep(t.triggerWidth)
	if err := t.trigger.SetOutput(false); err != nil {
		return PulseMeasurement{}, fmt.Errorf("lower trigger: %w", err)
	}

	start := t.clock.Now()
	deadline := start.Add(t.timeout)
	for {
		high, err := t.echo.ReadInput()
		if err != nil {
			return PulseMeasurement{}, fmt.Errorf("read echo: %w", err)
		}
		if high {
			break
		}
		start = t.clock.Now()
		if start.After(deadline) {
			return PulseMeasurement{}, fmt.Errorf("%w: no rising edge after %v", ErrEchoTimeout, t.timeout)
		}
	}

	stop := start
	for {
		high, err := t.echo.ReadInput()
		if err != nil {
			return PulseMeasurement{}, fmt.Errorf("read echo: %w", err)
		}
		if !high {
			break
		}
		stop = t.clock.Now()
		if stop.After(deadline) {
			return PulseMeasurement{}, fmt.Errorf("%w: no falling edge after %v", ErrEchoTimeout, t.timeout)
		}
	}

	return PulseMeasurement{Start: start, Stop: stop}, nil
}

func (t *PulseTimer) waitEchoLow() error {
	deadline := t.clock.Now().Add(t.timeout)
	for {
		high, err := t.echo.ReadInput()
		if err != nil {
			return fmt.Errorf("read echo: %w", err)
		}
		if !high {
			return nil
		}
		if t.clock.Now().After(deadline) {
			return fmt.Errorf("%w: echo line stuck high", ErrEchoTimeout)
		}
	}
}
