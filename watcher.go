package main

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"pisense/sampling"
)

type distanceSource interface {
	Distance() (sampling.DistanceReading, error)
}

// Watcher polls the ultrasonic ranger and raises door_open / door_close
// events when the distance crosses the threshold.  The door is assumed
// closed at start.
type Watcher struct {
	source      distanceSource
	thresholdCM float64
	interval    time.Duration
	clock       clock.Clock
	handlers    []AlertHandler
	metrics     *Metrics
	log         zerolog.Logger

	open bool
}

// NewWatcher returns a door watcher that polls src every cfg.PollInterval.
func NewWatcher(src distanceSource, cfg DoorConfig, clk clock.Clock, handlers []AlertHandler, m *Metrics, log zerolog.Logger) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	return &Watcher{
		source:      src,
		thresholdCM: cfg.ThresholdCM,
		interval:    cfg.PollInterval,
		clock:       clk,
		handlers:    handlers,
		metrics:     m,
		log:         log.With().Str("component", "watcher").Logger(),
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().Float64("threshold_cm", w.thresholdCM).Dur("interval", w.interval).Msg("watching door")
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll runs one cycle.  A failed read skips the cycle without touching the
// door state, so a timeout is never mistaken for a closed door.
func (w *Watcher) poll(ctx context.Context) (Event, bool) {
	d, err := w.source.Distance()
	if err != nil {
		w.log.Warn().Err(err).Msg("distance read failed, skipping cycle")
		return Event{}, false
	}
	w.log.Debug().Float64("distance_cm", float64(d)).Msg("distance")

	open := doorOpen(float64(d), w.thresholdCM)
	if open == w.open {
		return Event{}, false
	}
	w.open = open

	kind := EventDoorClose
	if open {
		kind = EventDoorOpen
	}
	ev := Event{Kind: kind, DistanceCM: float64(d), At: w.clock.Now()}
	w.metrics.observeDoorEvent(string(kind))
	dispatch(ctx, w.handlers, ev, w.log)
	return ev, true
}

// DailyCapture raises a scheduled event once a day at a fixed local time.
type DailyCapture struct {
	ctx       context.Context
	scheduler gocron.Scheduler
	job       gocron.Job
	clock     clock.Clock
	handlers  []AlertHandler
	metrics   *Metrics
	log       zerolog.Logger
}

// NewDailyCapture registers the job.  Handlers run with ctx.
func NewDailyCapture(ctx context.Context, cfg ScheduleConfig, clk clock.Clock, handlers []AlertHandler, m *Metrics, log zerolog.Logger) (*DailyCapture, error) {
	if clk == nil {
		clk = clock.New()
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return nil, err
	}
	d := &DailyCapture{
		ctx:       ctx,
		scheduler: s,
		clock:     clk,
		handlers:  handlers,
		metrics:   m,
		log:       log.With().Str("component", "schedule").Logger(),
	}
	d.job, err = s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(cfg.Hour), uint(cfg.Minute), 0))),
		gocron.NewTask(d.fire),
		gocron.WithName("daily-capture"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule daily capture at %02d:%02d: %w", cfg.Hour, cfg.Minute, err)
	}
	return d, nil
}

// Start starts the scheduler and logs the next run.
func (d *DailyCapture) Start() {
	d.scheduler.Start()
	if next, err := d.job.NextRun(); err == nil {
		d.log.Info().Time("next_run", next).Msg("daily capture scheduled")
	}
}

// NextRun reports when the capture fires next.
func (d *DailyCapture) NextRun() (time.Time, error) {
	return d.job.NextRun()
}

// Shutdown stops the scheduler and waits for a running capture.
func (d *DailyCapture) Shutdown() error {
	return d.scheduler.Shutdown()
}

func (d *DailyCapture) fire() {
	ev := Event{Kind: EventScheduled, At: d.clock.Now()}
	d.metrics.observeDoorEvent(string(ev.Kind))
	dispatch(d.ctx, d.handlers, ev, d.log)
}
