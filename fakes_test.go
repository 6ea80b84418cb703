package main

import (
	"context"
	"errors"
	"sync"

	"periph.io/x/conn/v3/gpio"

	"pisense/sampling"
)

// fakeSampler replays scripted readings.  Distances are consumed in order;
// the last one repeats.
type fakeSampler struct {
	mu        sync.Mutex
	gas       sampling.GasReading
	gasErr    error
	distances []distanceResult
	calls     int
}

type distanceResult struct {
	cm  float64
	err error
}

func (f *fakeSampler) GasReading() (sampling.GasReading, error) {
	return f.gas, f.gasErr
}

func (f *fakeSampler) DistanceReading() (sampling.DistanceReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.distances) == 0 {
		return 0, errors.New("no distance scripted")
	}
	i := f.calls
	if i >= len(f.distances) {
		i = len(f.distances) - 1
	}
	f.calls++
	r := f.distances[i]
	return sampling.DistanceReading(r.cm), r.err
}

func (f *fakeSampler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func gasOf(raw float64) sampling.GasReading {
	return sampling.GasReading{
		AverageRaw: raw,
		Voltage:    sampling.Voltage(raw),
		Percentage: sampling.Percentage(raw),
		Samples:    sampling.DefaultSampleCount,
	}
}

type fakeEnv struct {
	reading EnvReading
	err     error
}

func (f fakeEnv) Sense() (EnvReading, error) { return f.reading, f.err }

type fakeCamera struct {
	mu       sync.Mutex
	prefixes []string
	path     string
	err      error
}

func (c *fakeCamera) Capture(_ context.Context, prefix string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes = append(c.prefixes, prefix)
	return c.path, c.err
}

func (c *fakeCamera) captured() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prefixes...)
}

// recordingSink is an ledSink that remembers every level written.
type recordingSink struct {
	mu     sync.Mutex
	level  gpio.Level
	writes []gpio.Level
	err    error
}

func (s *recordingSink) Out(l gpio.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.level = l
	s.writes = append(s.writes, l)
	return nil
}

func (s *recordingSink) Read() gpio.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *recordingSink) history() []gpio.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gpio.Level(nil), s.writes...)
}

// recordingHandler collects dispatched events.
type recordingHandler struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (h *recordingHandler) Name() string { return "recorder" }

func (h *recordingHandler) Send(_ context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

func (h *recordingHandler) kinds() []EventKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	var k []EventKind
	for _, ev := range h.events {
		k = append(k, ev.Kind)
	}
	return k
}
