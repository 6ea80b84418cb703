package sampling

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// LineSet is every line the sampling layer drives.  A peripheral whose lines
// are all nil is left out: the ranger when Trigger and Echo are nil, the ADC
// when ADC.WR is nil.
type LineSet struct {
	Trigger DigitalLine
	Echo    DigitalLine
	ADC     ADCLines
}

func (l LineSet) hasRanger() bool { return l.Trigger != nil || l.Echo != nil }
func (l LineSet) hasADC() bool    { return l.ADC.WR != nil }

// Options configures Open.
type Options struct {
	ClockFrequency physic.Frequency
	ClockDuty      gpio.Duty
	Pulse          PulseTimerConfig
	ADC            ADCConfig
	Sampler        SamplerConfig
	// Clock defaults to the wall clock.
	Clock MonotonicClock
}

// PeripheralContext owns the board's sampling lines and the ADC conversion
// clock for the life of the process.  Build one with Open and release it with
// Close; WithPeripherals wraps both.
type PeripheralContext struct {
	mu     sync.Mutex
	lines  LineSet
	clk    Clock
	closed bool
	// clockRunning is set once clk.Start succeeded.
	clockRunning bool

	Pulse   *PulseTimer
	ADC     *ParallelADC
	Sampler *Sampler
}

// Open configures line directions, drives every output to its idle level and
// starts the conversion clock.  If any step fails, whatever was already set up
// is torn down before the error is returned.
func Open(lines LineSet, clk Clock, opts Options) (*PeripheralContext, error) {
	if opts.ClockFrequency == 0 {
		opts.ClockFrequency = DefaultClockFrequency
	}
	if opts.ClockDuty == 0 {
		opts.ClockDuty = gpio.DutyHalf
	}
	mono := defaultClock(opts.Clock)

	pc := &PeripheralContext{lines: lines, clk: clk}
	if err := pc.setup(opts); err != nil {
		return nil, multierr.Append(err, pc.Close())
	}

	var (
		adc  ADCReader
		echo EchoTimer
	)
	if lines.hasRanger() {
		pc.Pulse = NewPulseTimer(lines.Trigger, lines.Echo, mono, opts.Pulse)
		echo = pc.Pulse
	}
	if lines.hasADC() {
		a, err := NewParallelADC(lines.ADC, mono, opts.ADC)
		if err != nil {
			return nil, multierr.Append(err, pc.Close())
		}
		pc.ADC = a
		adc = a
	}
	pc.Sampler = NewSampler(adc, echo, mono, opts.Sampler)
	return pc, nil
}

func (pc *PeripheralContext) setup(opts Options) error {
	if pc.lines.hasRanger() {
		if pc.lines.Trigger == nil || pc.lines.Echo == nil {
			return fmt.Errorf("%w: ranger needs both trigger and echo lines", ErrDeviceUnavailable)
		}
		if err := configureOutput(pc.lines.Trigger, false); err != nil {
			return fmt.Errorf("trigger: %w", err)
		}
		if err := pc.lines.Echo.Configure(Input); err != nil {
			return fmt.Errorf("echo: %w", err)
		}
	}

	if !pc.lines.hasADC() {
		return nil
	}
	if name := pc.lines.ADC.missing(); name != "" {
		return fmt.Errorf("%w: adc line %s not set", ErrDeviceUnavailable, name)
	}
	if pc.clk == nil {
		return fmt.Errorf("%w: adc conversion clock not set", ErrDeviceUnavailable)
	}
	if err := configureOutput(pc.lines.ADC.WR, true); err != nil {
		return fmt.Errorf("WR: %w", err)
	}
	if err := configureOutput(pc.lines.ADC.RD, true); err != nil {
		return fmt.Errorf("RD: %w", err)
	}
	if err := pc.lines.ADC.INTR.Configure(Input); err != nil {
		return fmt.Errorf("INTR: %w", err)
	}
	for i, d := range pc.lines.ADC.Data {
		if err := d.Configure(Input); err != nil {
			return fmt.Errorf("D%d: %w", i, err)
		}
	}
	if err := pc.clk.Start(opts.ClockFrequency, opts.ClockDuty); err != nil {
		return fmt.Errorf("start adc clock at %s: %w", opts.ClockFrequency, err)
	}
	pc.clockRunning = true
	return nil
}

func configureOutput(l DigitalLine, idle bool) error {
	if err := l.Configure(Output); err != nil {
		return err
	}
	return l.SetOutput(idle)
}

// Close stops the conversion clock and returns every output to its idle
// level.  It attempts every step even when one fails and reports all
// failures.  Calling Close more than once is a no-op.
func (pc *PeripheralContext) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return nil
	}
	pc.closed = true

	var err error
	if pc.clockRunning {
		err = multierr.Append(err, pc.clk.Stop())
		pc.clockRunning = false
	}
	if pc.lines.Trigger != nil {
		err = multierr.Append(err, pc.lines.Trigger.SetOutput(false))
	}
	if pc.lines.ADC.WR != nil {
		err = multierr.Append(err, pc.lines.ADC.WR.SetOutput(true))
	}
	if pc.lines.ADC.RD != nil {
		err = multierr.Append(err, pc.lines.ADC.RD.SetOutput(true))
	}
	if err != nil {
		return fmt.Errorf("release peripherals: %w", err)
	}
	return nil
}

// WithPeripherals opens a PeripheralContext, runs fn and closes the context
// whether or not fn succeeded.
func WithPeripherals(lines LineSet, clk Clock, opts Options, fn func(*PeripheralContext) error) (err error) {
	pc, err := Open(lines, clk, opts)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(pc))
	return fn(pc)
}
