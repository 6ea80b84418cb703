package main

import (
	"io"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"pisense/sampling"
)

// Board is everything opened on the Pi for one run of the program.  Missing
// hardware is tolerated: the peripheral is left out and reads of it report
// sampling.ErrDeviceUnavailable.
type Board struct {
	Peripherals *sampling.PeripheralContext
	LED         *LED
	Env         EnvSensor

	envCloser io.Closer
	log       zerolog.Logger
}

// OpenBoard opens the lines named in cfg.Pins, starts the ADC clock and
// looks for the LED and BME280.
func OpenBoard(cfg Config, log zerolog.Logger) (*Board, error) {
	log = log.With().Str("component", "board").Logger()
	if err := initGPIO(); err != nil {
		log.Warn().Err(err).Msg("gpio host init failed")
	}

	var lines sampling.LineSet
	trig, terr := openLine(cfg.Pins.Trigger)
	echo, eerr := openLine(cfg.Pins.Echo)
	if err := multierr.Combine(terr, eerr); err != nil {
		log.Warn().Err(err).Msg("ultrasonic ranger unavailable")
	} else {
		lines.Trigger, lines.Echo = trig, echo
	}

	adcLines, err := openADCLines(cfg.Pins)
	var adcClock sampling.Clock
	if err == nil {
		adcClock, err = openPWMClock(cfg.Pins.Clock)
	}
	if err != nil {
		log.Warn().Err(err).Msg("gas ADC unavailable")
	} else {
		lines.ADC = adcLines
	}

	pc, err := sampling.Open(lines, adcClock, sampling.Options{
		ClockFrequency: physic.Frequency(cfg.ADC.ClockHz) * physic.Hertz,
		ClockDuty:      gpio.DutyHalf,
		Pulse:          cfg.Ultrasonic,
		ADC:            cfg.ADC.ADCConfig,
		Sampler:        cfg.Gas,
	})
	if err != nil {
		return nil, err
	}

	b := &Board{
		Peripherals: pc,
		LED:         NewLED(openLEDSinks(cfg.LED.Name, cfg.Pins.LED)),
		log:         log,
	}
	if cfg.BME280.Enabled {
		env, closer, err := openEnvSensor(cfg.BME280)
		if err != nil {
			log.Warn().Err(err).Msg("bme280 unavailable")
		} else {
			b.Env, b.envCloser = env, closer
		}
	}
	log.Info().
		Bool("ranger", pc.Pulse != nil).
		Bool("adc", pc.ADC != nil).
		Bool("bme280", b.Env != nil).
		Str("led", b.LED.Status()).
		Msg("board opened")
	return b, nil
}

func openADCLines(p Pins) (sampling.ADCLines, error) {
	var (
		l   sampling.ADCLines
		err error
	)
	open := func(pin int) sampling.DigitalLine {
		line, oerr := openLine(pin)
		err = multierr.Append(err, oerr)
		return line
	}
	l.WR = open(p.WR)
	l.RD = open(p.RD)
	l.INTR = open(p.INTR)
	for i := 0; i < sampling.BusWidth && i < len(p.Data); i++ {
		l.Data[i] = open(p.Data[i])
	}
	if err != nil {
		return sampling.ADCLines{}, err
	}
	return l, nil
}

// Close switches the LED off and releases every peripheral.
func (b *Board) Close() error {
	var err error
	if b.LED.Status() != "unknown" {
		err = multierr.Append(err, b.LED.Set(false))
	}
	err = multierr.Append(err, b.Peripherals.Close())
	if b.envCloser != nil {
		err = multierr.Append(err, b.envCloser.Close())
	}
	return err
}
