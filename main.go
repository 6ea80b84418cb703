package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagNoWatch  = "no-watch"
	flagWarmup   = "warmup"
	flagInterval = "interval"
	flagLEDAbove = "led-above"
	flagPeriod   = "period"
)

var app = &cli.App{
	Name:            "pisense",
	Usage:           "sample the door ranger, gas ADC and BME280 on a Raspberry Pi",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Value:   defaultConfigPath,
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:  flagDebug,
			Usage: "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "serve",
			Usage: "run the HTTP API, door watcher, daily capture and MQTT publisher",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  flagNoWatch,
					Usage: "serve the API without watching the door",
				},
			},
			Action: serveAction,
		},
		{
			Name:   "watch",
			Usage:  "watch the door and capture on open/close and once a day",
			Action: watchAction,
		},
		{
			Name:  "gas",
			Usage: "print the gas level once per interval",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  flagWarmup,
					Value: 10 * time.Second,
					Usage: "sensor warm-up before the first reading",
				},
				&cli.DurationFlag{
					Name:  flagInterval,
					Value: time.Second,
					Usage: "time between readings",
				},
			},
			Action: gasAction,
		},
		{
			Name:  "distance",
			Usage: "print the ultrasonic distance once per interval",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  flagInterval,
					Value: time.Second,
					Usage: "time between readings",
				},
			},
			Action: distanceAction,
		},
		{
			Name:  "env",
			Usage: "print BME280 readings and light the LED when it is hot",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  flagInterval,
					Value: 5 * time.Second,
					Usage: "time between readings",
				},
				&cli.Float64Flag{
					Name:  flagLEDAbove,
					Value: 30,
					Usage: "switch the LED on above this temperature in °C",
				},
			},
			Action: envAction,
		},
		{
			Name:  "blink",
			Usage: "blink the LED",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  flagPeriod,
					Value: 500 * time.Millisecond,
					Usage: "time between toggles",
				},
			},
			Action: blinkAction,
		},
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// station is what every subcommand starts from: the loaded config, the
// logger, the opened board and the clock that paces its loops.
type station struct {
	cfg      Config
	log      zerolog.Logger
	clock    clock.Clock
	board    *Board
	metrics  *Metrics
	readings *Readings

	logCloser io.Closer
}

func setup(c *cli.Context) (*station, error) {
	cfgMgr := NewConfigManager(c.String(flagConfig))
	if err := cfgMgr.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := cfgMgr.Get()

	log, logCloser := newLogger(cfg.LogFile, cfg.Debug || c.Bool(flagDebug))
	board, err := OpenBoard(cfg, log)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("initialisation error: %w", err), logCloser.Close())
	}

	m := NewMetrics()
	return &station{
		cfg:       cfg,
		log:       log,
		clock:     clock.New(),
		board:     board,
		metrics:   m,
		readings:  NewReadings(board.Peripherals.Sampler, board.Env, m),
		logCloser: logCloser,
	}, nil
}

func (st *station) Close() error {
	err := st.board.Close()
	if err != nil {
		st.log.Error().Err(err).Msg("board teardown")
	}
	return multierr.Append(err, st.logCloser.Close())
}
