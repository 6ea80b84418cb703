package main

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"pisense/sampling"
)

func serveAction(c *cli.Context) (err error) {
	st, err := setup(c)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(st))

	return st.serve(c.Context, NewStillCamera(st.cfg.Camera, nil), !c.Bool(flagNoWatch))
}

// serve runs the HTTP API, and the watchers when watch is set, until ctx is
// cancelled or one of them fails.
func (st *station) serve(ctx context.Context, cam Camera, watch bool) error {
	server := NewServer(st.cfg.HTTPPort, st.readings, st.board.LED, cam, st.metrics, st.log)

	g, ctx := errgroup.WithContext(ctx)
	// Watchers start first so a setup failure returns before the listener
	// is up.
	if watch {
		stop, err := st.startWatching(ctx, g, cam)
		if err != nil {
			return err
		}
		defer stop()
	}
	g.Go(func() error { return server.Start(ctx) })
	return g.Wait()
}

func watchAction(c *cli.Context) (err error) {
	st, err := setup(c)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(st))

	g, ctx := errgroup.WithContext(c.Context)
	stop, err := st.startWatching(ctx, g, NewStillCamera(st.cfg.Camera, nil))
	if err != nil {
		return err
	}
	defer stop()
	return g.Wait()
}

// startWatching runs the door watcher, the daily capture and, when a broker
// is configured, the MQTT publisher in g.  The returned func stops the
// scheduler and disconnects from the broker.
func (st *station) startWatching(ctx context.Context, g *errgroup.Group, cam Camera) (func(), error) {
	clk := st.clock
	handlers := []AlertHandler{
		LogAlert{log: st.log},
		CaptureAlert{
			camera:  cam,
			led:     st.board.LED,
			settle:  st.cfg.Door.CaptureDelay,
			clock:   clk,
			metrics: st.metrics,
			log:     st.log,
		},
	}

	var stops []func()
	stopAll := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if st.cfg.MQTT.Broker != "" {
		pub, err := NewPublisher(st.cfg.MQTT, st.readings, clk, st.log)
		if err != nil {
			st.log.Warn().Err(err).Msg("mqtt publisher disabled")
		} else {
			handlers = append(handlers, pub)
			stops = append(stops, func() { _ = pub.Close() })
			g.Go(func() error { return pub.Run(ctx) })
		}
	}

	if st.cfg.Schedule.Enabled {
		daily, err := NewDailyCapture(ctx, st.cfg.Schedule, clk, handlers, st.metrics, st.log)
		if err != nil {
			stopAll()
			return nil, err
		}
		daily.Start()
		stops = append(stops, func() {
			if err := daily.Shutdown(); err != nil {
				st.log.Warn().Err(err).Msg("scheduler shutdown")
			}
		})
	}

	w := NewWatcher(st.readings, st.cfg.Door, clk, handlers, st.metrics, st.log)
	g.Go(func() error { return w.Run(ctx) })
	return stopAll, nil
}

func gasAction(c *cli.Context) (err error) {
	st, err := setup(c)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(st))

	out := c.App.Writer
	if err := warmUp(c.Context, st.clock, c.Duration(flagWarmup), func(left time.Duration) {
		fmt.Fprintf(out, "warming up sensor, %s left\n", left)
	}); err != nil {
		return nil
	}
	fmt.Fprintln(out, "monitoring gas level, press Ctrl+C to stop")
	return every(c.Context, st.clock, c.Duration(flagInterval), func() {
		g, err := st.readings.Gas()
		if err != nil {
			fmt.Fprintf(out, "%s  gas read failed: %v\n", stamp(st.clock), err)
			return
		}
		fmt.Fprintf(out, "%s  raw %6.2f  %.2fV  level %5.1f%%  %s\n",
			stamp(st.clock), g.AverageRaw, g.Voltage, g.Percentage, gasStatus(g.Percentage))
	})
}

func distanceAction(c *cli.Context) (err error) {
	st, err := setup(c)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(st))

	out := c.App.Writer
	return every(c.Context, st.clock, c.Duration(flagInterval), func() {
		d, err := st.readings.Distance()
		if err != nil {
			fmt.Fprintf(out, "%s  distance read failed: %v\n", stamp(st.clock), err)
			return
		}
		fmt.Fprintf(out, "%s  distance %.2f cm\n", stamp(st.clock), float64(d))
	})
}

func envAction(c *cli.Context) (err error) {
	st, err := setup(c)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(st))

	out := c.App.Writer
	hot := c.Float64(flagLEDAbove)
	return every(c.Context, st.clock, c.Duration(flagInterval), func() {
		e, err := st.readings.Environment()
		if err != nil {
			fmt.Fprintf(out, "%s  bme280 read failed: %v\n", stamp(st.clock), err)
			return
		}
		fmt.Fprintf(out, "%s  %.2f°C (%.2f°F)  %.2f hPa  %.2f%%RH\n",
			stamp(st.clock), e.TemperatureC, e.TemperatureF, e.PressureHPa, e.HumidityPercent)
		if err := st.board.LED.Set(e.TemperatureC > hot); err != nil {
			st.log.Warn().Err(err).Msg("led")
		}
	})
}

func blinkAction(c *cli.Context) (err error) {
	st, err := setup(c)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(st))

	if st.board.LED.Status() == "unknown" {
		return fmt.Errorf("%w: no LED to blink", sampling.ErrDeviceUnavailable)
	}
	on := false
	var ledErr error
	runErr := every(c.Context, st.clock, c.Duration(flagPeriod), func() {
		on = !on
		if err := st.board.LED.Set(on); err != nil && ledErr == nil {
			ledErr = err
			st.log.Error().Err(err).Msg("led")
		}
	})
	return multierr.Append(runErr, ledErr)
}

// every calls fn now and then once per interval until ctx is cancelled.
func every(ctx context.Context, clk clock.Clock, interval time.Duration, fn func()) error {
	fn()
	t := clk.Ticker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			fn()
		}
	}
}

// warmUp counts down d in whole seconds.  It returns ctx.Err() if cancelled.
func warmUp(ctx context.Context, clk clock.Clock, d time.Duration, report func(left time.Duration)) error {
	for left := d.Truncate(time.Second); left > 0; left -= time.Second {
		report(left)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(time.Second):
		}
	}
	return nil
}

func stamp(clk clock.Clock) string {
	return clk.Now().Format("15:04:05")
}
