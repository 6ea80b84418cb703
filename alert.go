package main

// This file defines pluggable handlers run when the door watcher or the
// daily schedule produces an event.

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// EventKind names what happened.  The kind doubles as the capture filename
// prefix.
type EventKind string

const (
	EventDoorOpen  EventKind = "door_open"
	EventDoorClose EventKind = "door_close"
	EventScheduled EventKind = "scheduled"
)

// Event is a door transition or a scheduled capture.
type Event struct {
	Kind       EventKind `json:"kind"`
	DistanceCM float64   `json:"distance_cm,omitempty"`
	At         time.Time `json:"at"`
}

// AlertHandler reacts to an Event.  If Send returns an error the caller logs
// it and carries on with the remaining handlers.
type AlertHandler interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// LogAlert writes the event to the log.
type LogAlert struct {
	log zerolog.Logger
}

func (LogAlert) Name() string { return "log" }

func (a LogAlert) Send(_ context.Context, ev Event) error {
	e := a.log.Info().Str("event", string(ev.Kind))
	if ev.Kind != EventScheduled {
		e = e.Float64("distance_cm", round(ev.DistanceCM, 2))
	}
	e.Msg("door watcher event")
	return nil
}

// CaptureAlert lights the LED and takes a picture.  Door events wait for
// settle first so the LED lights the scene.
type CaptureAlert struct {
	camera  Camera
	led     *LED
	settle  time.Duration
	clock   clock.Clock
	metrics *Metrics
	log     zerolog.Logger
}

func (CaptureAlert) Name() string { return "capture" }

func (a CaptureAlert) Send(ctx context.Context, ev Event) error {
	if err := a.led.Set(true); err != nil {
		a.log.Warn().Err(err).Msg("led on")
	}
	defer func() {
		if err := a.led.Set(false); err != nil {
			a.log.Warn().Err(err).Msg("led off")
		}
	}()

	if ev.Kind != EventScheduled && a.settle > 0 {
		t := a.clock.Timer(a.settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	path, err := a.camera.Capture(ctx, string(ev.Kind))
	a.metrics.observeCapture(err)
	if err != nil {
		return err
	}
	a.log.Info().Str("event", string(ev.Kind)).Str("file", path).Msg("image saved")
	return nil
}

// dispatch runs every handler in order.
func dispatch(ctx context.Context, handlers []AlertHandler, ev Event, log zerolog.Logger) {
	for _, h := range handlers {
		if err := h.Send(ctx, ev); err != nil {
			log.Error().Err(err).Str("handler", h.Name()).Str("event", string(ev.Kind)).Msg("alert handler failed")
		}
	}
}
