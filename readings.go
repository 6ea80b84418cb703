package main

import (
	"fmt"

	"pisense/sampling"
)

// sampler is satisfied by *sampling.Sampler.
type sampler interface {
	GasReading() (sampling.GasReading, error)
	DistanceReading() (sampling.DistanceReading, error)
}

// Readings is the single entry point the HTTP layer, the door watcher and
// the publisher use to read sensors.  Every read is counted in Metrics.
type Readings struct {
	sampler sampler
	env     EnvSensor
	metrics *Metrics
}

// NewReadings wires the sensors together.  env may be nil when no BME280 is
// fitted.
func NewReadings(s sampler, env EnvSensor, m *Metrics) *Readings {
	return &Readings{sampler: s, env: env, metrics: m}
}

// Gas takes a gas reading and records it in the metrics.
func (r *Readings) Gas() (sampling.GasReading, error) {
	g, err := r.sampler.GasReading()
	r.metrics.observeGas(g, err)
	return g, err
}

// Distance takes a distance reading and records it in the metrics.
func (r *Readings) Distance() (sampling.DistanceReading, error) {
	d, err := r.sampler.DistanceReading()
	r.metrics.observeDistance(d, err)
	return d, err
}

// Environment reads the BME280.  It returns ErrDeviceUnavailable when no
// sensor was found.
func (r *Readings) Environment() (EnvReading, error) {
	if r.env == nil {
		err := fmt.Errorf("%w: no bme280", sampling.ErrDeviceUnavailable)
		r.metrics.observeEnv(err)
		return EnvReading{}, err
	}
	e, err := r.env.Sense()
	r.metrics.observeEnv(err)
	return e, err
}

// Status is the combined snapshot served by /api/status and published over
// MQTT.
type Status struct {
	DoorDistanceCM  float64 `json:"door_distance_cm"`
	GasRaw          float64 `json:"gas_raw"`
	GasVoltage      float64 `json:"gas_voltage"`
	GasLevelPercent float64 `json:"gas_level_percent"`
	TemperatureC    float64 `json:"temperature_c"`
	HumidityPercent float64 `json:"humidity_percent"`
	PressureHPa     float64 `json:"pressure_hpa"`
}

// Status reads every sensor.  A failure of any one fails the snapshot; a
// partial snapshot would report zeros for the missing sensor.
func (r *Readings) Status() (Status, error) {
	d, err := r.Distance()
	if err != nil {
		return Status{}, fmt.Errorf("distance: %w", err)
	}
	g, err := r.Gas()
	if err != nil {
		return Status{}, fmt.Errorf("gas: %w", err)
	}
	e, err := r.Environment()
	if err != nil {
		return Status{}, fmt.Errorf("bme280: %w", err)
	}
	return Status{
		DoorDistanceCM:  round(float64(d), 2),
		GasRaw:          round(g.AverageRaw, 2),
		GasVoltage:      round(g.Voltage, 2),
		GasLevelPercent: round(g.Percentage, 1),
		TemperatureC:    round(e.TemperatureC, 2),
		HumidityPercent: round(e.HumidityPercent, 2),
		PressureHPa:     round(e.PressureHPa, 2),
	}, nil
}
