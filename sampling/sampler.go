package sampling

import (
	"fmt"
	"time"
)

const (
	// SpeedOfSoundCMPerSecond is used to turn echo time into distance.
	SpeedOfSoundCMPerSecond = 34300.0

	// FullScale is the largest RawSample.
	FullScale = 255.0
	// ReferenceVoltage is the ADC's full-scale input voltage.
	ReferenceVoltage = 5.0

	DefaultSampleCount      = 5
	DefaultInterSampleDelay = 10 * time.Millisecond
	DefaultMaxFailureRatio  = 0.5
)

// Voltage converts an averaged raw value to volts.
func Voltage(avg float64) float64 {
	return avg / FullScale * ReferenceVoltage
}

// Percentage converts an averaged raw value to percent of full scale.
func Percentage(avg float64) float64 {
	return avg / FullScale * 100
}

// DistanceCM converts a round-trip echo time to a one-way distance.
func DistanceCM(elapsed time.Duration) float64 {
	return elapsed.Seconds() * SpeedOfSoundCMPerSecond / 2
}

// GasReading is an averaged gas sensor reading.
type GasReading struct {
	AverageRaw float64
	Voltage    float64
	Percentage float64
	// Samples is the number of conversions that contributed to AverageRaw
	// and Failed the number that were discarded.
	Samples int
	Failed  int
}

// DistanceReading is a distance in centimetres.
type DistanceReading float64

// ADCReader is satisfied by *ParallelADC.
type ADCReader interface {
	Read() (RawSample, error)
}

// EchoTimer is satisfied by *PulseTimer.
type EchoTimer interface {
	MeasureEchoPulse() (PulseMeasurement, error)
}

// SamplerConfig tunes a Sampler.  Zero values select the defaults.
//
// MaxFailureRatio is the largest fraction of failed conversions a gas reading
// tolerates.  Failed conversions are dropped and the average is taken over
// the rest; above the ratio, or when nothing succeeded, the whole reading
// fails with ErrTooManyFailures.  Nil selects DefaultMaxFailureRatio and 0
// fails the reading on the first failed conversion.
type SamplerConfig struct {
	SampleCount      int           `yaml:"sample_count"`
	InterSampleDelay time.Duration `yaml:"inter_sample_delay"`
	MaxFailureRatio  *float64      `yaml:"max_failure_ratio"`
}

// Ratio returns a pointer to r for SamplerConfig.MaxFailureRatio.
func Ratio(r float64) *float64 { return &r }

// Sampler turns raw peripheral transactions into readings.
type Sampler struct {
	adc   ADCReader
	echo  EchoTimer
	clock MonotonicClock
	cfg   SamplerConfig

	maxFailureRatio float64
}

// NewSampler builds a Sampler.  Either adc or echo may be nil, in which case
// the matching reading reports ErrDeviceUnavailable.
func NewSampler(adc ADCReader, echo EchoTimer, clk MonotonicClock, cfg SamplerConfig) *Sampler {
	if cfg.SampleCount <= 0 {
		cfg.SampleCount = DefaultSampleCount
	}
	if cfg.InterSampleDelay <= 0 {
		cfg.InterSampleDelay = DefaultInterSampleDelay
	}
	ratio := DefaultMaxFailureRatio
	if r := cfg.MaxFailureRatio; r != nil && *r >= 0 && *r <= 1 {
		ratio = *r
	}
	return &Sampler{adc: adc, echo: echo, clock: defaultClock(clk), cfg: cfg, maxFailureRatio: ratio}
}

// GasReading takes SampleCount conversions, InterSampleDelay apart, and
// averages the ones that succeeded.
func (s *Sampler) GasReading() (GasReading, error) {
	if s.adc == nil {
		return GasReading{}, fmt.Errorf("%w: no adc", ErrDeviceUnavailable)
	}

	var (
		total   float64
		good    int
		lastErr error
	)
	for i := 0; i < s.cfg.SampleCount; i++ {
		if i > 0 {
			s.clock.Sleep(s.cfg.InterSampleDelay)
		}
		v, err := s.adc.Read()
		if err != nil {
			lastErr = err
			continue
		}
		total += float64(v)
		good++
	}

	failed := s.cfg.SampleCount - good
	if good == 0 || float64(failed)/float64(s.cfg.SampleCount) > s.maxFailureRatio {
		return GasReading{}, fmt.Errorf("%w: %d of %d: %w", ErrTooManyFailures, failed, s.cfg.SampleCount, lastErr)
	}

	avg := total / float64(good)
	return GasReading{
		AverageRaw: avg,
		Voltage:    Voltage(avg),
		Percentage: Percentage(avg),
		Samples:    good,
		Failed:     failed,
	}, nil
}

// DistanceReading measures one echo pulse and converts it to centimetres.
func (s *Sampler) DistanceReading() (DistanceReading, error) {
	if s.echo == nil {
		return 0, fmt.Errorf("%w: no ultrasonic ranger", ErrDeviceUnavailable)
	}
	m, err := s.echo.MeasureEchoPulse()
	if err != nil {
		return 0, err
	}
	return DistanceReading(DistanceCM(m.Elapsed())), nil
}
