package sampling

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

type board struct {
	clk   *simClock
	pwm   *fakePWM
	adc   *adcSim
	rng   *ranger
	lines LineSet
}

func newBoard() *board {
	clk := newSimClock(time.Microsecond)
	b := &board{
		clk: clk,
		pwm: &fakePWM{},
		adc: newADCSim(clk, 100*time.Microsecond, 100),
		rng: newRanger(clk, 200*time.Microsecond, time.Millisecond),
	}
	b.lines = LineSet{Trigger: b.rng.trigger, Echo: b.rng.echo, ADC: b.adc.lines}
	return b
}

func TestOpenConfiguresLinesAndClock(t *testing.T) {
	b := newBoard()
	pc, err := Open(b.lines, b.pwm, Options{Clock: b.clk})
	require.NoError(t, err)

	assert.Equal(t, Output, b.rng.trigger.dir)
	assert.False(t, b.rng.trigger.level)
	assert.Equal(t, Input, b.rng.echo.dir)
	assert.Equal(t, Output, b.adc.wr.dir)
	assert.True(t, b.adc.wr.level)
	assert.Equal(t, Output, b.adc.rd.dir)
	assert.True(t, b.adc.rd.level)
	assert.Equal(t, Input, b.adc.intr.dir)
	for i, d := range b.adc.data {
		assert.Equal(t, Input, d.dir, "D%d", i)
	}

	assert.True(t, b.pwm.running)
	assert.Equal(t, DefaultClockFrequency, b.pwm.freq)
	assert.Equal(t, gpio.DutyHalf, b.pwm.duty)

	gas, err := pc.Sampler.GasReading()
	require.NoError(t, err)
	assert.Equal(t, 100.0, gas.AverageRaw)

	d, err := pc.Sampler.DistanceReading()
	require.NoError(t, err)
	assert.InDelta(t, 17.15, float64(d), 1e-9)

	require.NoError(t, pc.Close())
	assert.False(t, b.pwm.running)
	assert.True(t, b.adc.wr.level)
	assert.True(t, b.adc.rd.level)
	assert.False(t, b.rng.trigger.level)

	require.NoError(t, pc.Close())
	assert.Equal(t, 1, b.pwm.stops, "second Close is a no-op")
}

func TestOpenClockFailure(t *testing.T) {
	b := newBoard()
	b.pwm.startErr = errors.New("pwm busy")

	pc, err := Open(b.lines, b.pwm, Options{Clock: b.clk})
	require.Error(t, err)
	assert.Nil(t, pc)
	assert.Contains(t, err.Error(), "pwm busy")
	assert.Zero(t, b.pwm.stops, "clock never started, nothing to stop")
	assert.True(t, b.adc.wr.level)
}

func TestOpenLineFailureLeavesClockStopped(t *testing.T) {
	b := newBoard()
	b.adc.data[7].err = ErrDeviceUnavailable

	_, err := Open(b.lines, b.pwm, Options{Clock: b.clk})
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Zero(t, b.pwm.starts)
}

func TestOpenWithoutClock(t *testing.T) {
	b := newBoard()
	_, err := Open(b.lines, nil, Options{Clock: b.clk})
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestOpenRangerOnly(t *testing.T) {
	b := newBoard()
	pc, err := Open(LineSet{Trigger: b.rng.trigger, Echo: b.rng.echo}, nil, Options{Clock: b.clk})
	require.NoError(t, err)
	defer pc.Close()

	assert.Nil(t, pc.ADC)
	_, err = pc.Sampler.GasReading()
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	_, err = pc.Sampler.DistanceReading()
	assert.NoError(t, err)
}

func TestWithPeripheralsReleasesOnError(t *testing.T) {
	b := newBoard()
	boom := errors.New("boom")

	err := WithPeripherals(b.lines, b.pwm, Options{Clock: b.clk}, func(pc *PeripheralContext) error {
		assert.True(t, b.pwm.running)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, b.pwm.running)
	assert.Equal(t, 1, b.pwm.stops)
}

func TestWithPeripheralsReportsTeardownFailure(t *testing.T) {
	b := newBoard()
	b.pwm.stopErr = errors.New("pwm stuck")

	err := WithPeripherals(b.lines, b.pwm, Options{Clock: b.clk}, func(*PeripheralContext) error {
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pwm stuck")
	assert.True(t, b.adc.wr.level, "lines released even though the clock failed to stop")
}
