package main

import (
	"math"

	"periph.io/x/conn/v3/physic"
)

// doorOpen interprets a distance reading.  The ranger faces the door leaf,
// so anything farther than the threshold means the leaf has swung away.
func doorOpen(distanceCM, thresholdCM float64) bool {
	return distanceCM > thresholdCM
}

// gasStatus buckets a gas level percentage into the bands printed by the
// monitor and returned by the API.
func gasStatus(percent float64) string {
	switch {
	case percent < 30:
		return "clean air"
	case percent < 50:
		return "normal"
	case percent < 70:
		return "elevated"
	default:
		return "high"
	}
}

// EnvReading is one BME280 sample.
type EnvReading struct {
	TemperatureC    float64
	TemperatureF    float64
	PressureHPa     float64
	HumidityPercent float64
}

// EnvSensor reads temperature, pressure and humidity.
type EnvSensor interface {
	Sense() (EnvReading, error)
}

func envFromPhysic(e physic.Env) EnvReading {
	c := float64(e.Temperature-physic.ZeroCelsius) / float64(physic.Celsius)
	return EnvReading{
		TemperatureC:    c,
		TemperatureF:    c*9/5 + 32,
		PressureHPa:     float64(e.Pressure) / float64(100*physic.Pascal),
		HumidityPercent: float64(e.Humidity) / float64(physic.PercentRH),
	}
}

// round rounds v to the given number of decimals.
func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
