package sampling

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultConversionTimeout bounds the wait for the ready line.  An
	// ADC0804 clocked at 640kHz converts in roughly 100µs.
	DefaultConversionTimeout = time.Millisecond
	// DefaultStrobeWidth is the minimum low time of the WR and RD strobes.
	DefaultStrobeWidth = time.Microsecond
	// DefaultPollInterval is the sleep between reads of the ready line.
	DefaultPollInterval = time.Microsecond
	// DefaultClockFrequency is the conversion clock fed to the ADC.
	DefaultClockFrequency = 640 * physic.KiloHertz
)

// RawSample is the result of one completed ADC conversion.
type RawSample uint8

// ADCLines are the lines of a parallel-output ADC.  WR and RD are active-low
// outputs, INTR is an active-low input and Data[i] carries bit i.
type ADCLines struct {
	WR   DigitalLine
	RD   DigitalLine
	INTR DigitalLine
	Data [BusWidth]DigitalLine
}

func (l ADCLines) missing() string {
	switch {
	case l.WR == nil:
		return "WR"
	case l.RD == nil:
		return "RD"
	case l.INTR == nil:
		return "INTR"
	}
	for i, d := range l.Data {
		if d == nil {
			return fmt.Sprintf("D%d", i)
		}
	}
	return ""
}

// ADCConfig tunes a ParallelADC.  Zero values select the defaults.
type ADCConfig struct {
	ConversionTimeout time.Duration `yaml:"conversion_timeout"`
	StrobeWidth       time.Duration `yaml:"strobe_width"`
	PollInterval      time.Duration `yaml:"poll_interval"`
}

// ParallelADC reads an 8-bit successive approximation ADC through its
// WR/INTR/RD handshake.  The conversion clock is not managed here; it must be
// running before the first Read (see PeripheralContext).
type ParallelADC struct {
	mu    sync.Mutex
	lines ADCLines
	clock MonotonicClock
	cfg   ADCConfig
}

// NewParallelADC returns a reader for the given lines.  Every line must be
// present.
func NewParallelADC(lines ADCLines, clk MonotonicClock, cfg ADCConfig) (*ParallelADC, error) {
	if name := lines.missing(); name != "" {
		return nil, fmt.Errorf("%w: adc line %s not set", ErrDeviceUnavailable, name)
	}
	if cfg.ConversionTimeout <= 0 {
		cfg.ConversionTimeout = DefaultConversionTimeout
	}
	if cfg.StrobeWidth <= 0 {
		cfg.StrobeWidth = DefaultStrobeWidth
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &ParallelADC{lines: lines, clock: defaultClock(clk), cfg: cfg}, nil
}

// Read runs one conversion and returns its value.  If the ready line is not
// pulled low within the conversion timeout, Read returns ErrConversionTimeout
// and leaves the data bus untouched.
func (a *ParallelADC) Read() (RawSample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.strobe(a.lines.WR); err != nil {
		return 0, fmt.Errorf("start conversion: %w", err)
	}
	if err := a.waitReady(); err != nil {
		return 0, err
	}

	if err := a.lines.RD.SetOutput(false); err != nil {
		return 0, fmt.Errorf("assert read strobe: %w", err)
	}
	a.clock.Sleep(a.cfg.StrobeWidth)
	bits, readErr := a.sampleBus()
	// RD goes back high even when the bus read failed.
	if err := multierr.Combine(readErr, a.lines.RD.SetOutput(true)); err != nil {
		return 0, fmt.Errorf("read data bus: %w", err)
	}
	return RawSample(CombineBits(bits)), nil
}

// strobe pulses an active-low line.
func (a *ParallelADC) strobe(line DigitalLine) error {
	if err := line.SetOutput(false); err != nil {
		return err
	}
	a.clock.Sleep(a.cfg.StrobeWidth)
	return line.SetOutput(true)
}

// waitReady polls INTR until the device pulls it low.
func (a *ParallelADC) waitReady() error {
	deadline := a.clock.Now().Add(a.cfg.ConversionTimeout)
	for {
		busy, err := a.lines.INTR.ReadInput()
		if err != nil {
			return fmt.Errorf("poll ready line: %w", err)
		}
		if !busy {
			return nil
		}
		if a.clock.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrConversionTimeout, a.cfg.ConversionTimeout)
		}
		a.clock.Sleep(a.cfg.PollInterval)
	}
}

func (a *ParallelADC) sampleBus() ([BusWidth]bool, error) {
	var bits [BusWidth]bool
	for i, line := range a.lines.Data {
		high, err := line.ReadInput()
		if err != nil {
			return bits, fmt.Errorf("D%d: %w", i, err)
		}
		bits[i] = high
	}
	return bits, nil
}
