package main

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pisense/sampling"
)

// Metrics exposes sampling health: how many readings failed and why, plus
// the latest good values.
type Metrics struct {
	registry   *prometheus.Registry
	readings   *prometheus.CounterVec
	gasRaw     prometheus.Gauge
	distanceCM prometheus.Gauge
	doorEvents *prometheus.CounterVec
	captures   *prometheus.CounterVec
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pisense_readings_total",
			Help: "Sensor readings by sensor and result (ok, timeout, unavailable, error).",
		}, []string{"sensor", "result"}),
		gasRaw: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pisense_gas_raw",
			Help: "Latest averaged raw gas ADC value (0-255).",
		}),
		distanceCM: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pisense_distance_cm",
			Help: "Latest ultrasonic distance in centimetres.",
		}),
		doorEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pisense_door_events_total",
			Help: "Door watcher events by kind.",
		}, []string{"kind"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pisense_captures_total",
			Help: "Camera captures by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.readings,
		m.gasRaw,
		m.distanceCM,
		m.doorEvents,
		m.captures,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case sampling.IsTimeout(err):
		return "timeout"
	case errors.Is(err, sampling.ErrDeviceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (m *Metrics) observeGas(r sampling.GasReading, err error) {
	m.readings.WithLabelValues("gas", resultLabel(err)).Inc()
	if err == nil {
		m.gasRaw.Set(r.AverageRaw)
	}
}

func (m *Metrics) observeDistance(d sampling.DistanceReading, err error) {
	m.readings.WithLabelValues("distance", resultLabel(err)).Inc()
	if err == nil {
		m.distanceCM.Set(float64(d))
	}
}

func (m *Metrics) observeEnv(err error) {
	m.readings.WithLabelValues("bme280", resultLabel(err)).Inc()
}

func (m *Metrics) observeDoorEvent(kind string) {
	m.doorEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeCapture(err error) {
	m.captures.WithLabelValues(resultLabel(err)).Inc()
}
