package sampling

import "errors"

var (
	// ErrConversionTimeout is returned when the ADC does not pull its ready
	// line low before the conversion deadline.
	ErrConversionTimeout = errors.New("adc conversion timeout")

	// ErrEchoTimeout is returned when the ultrasonic echo line does not show a
	// complete pulse before the measurement deadline.
	ErrEchoTimeout = errors.New("echo timeout")

	// ErrDeviceUnavailable is returned when a line or bus has not been
	// initialised or cannot be accessed.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrTooManyFailures is returned by Sampler.GasReading when more
	// sub-samples failed than the configured ratio allows.
	ErrTooManyFailures = errors.New("too many failed samples")
)

// IsTimeout reports whether err is one of the sampling timeouts.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrConversionTimeout) || errors.Is(err, ErrEchoTimeout)
}
