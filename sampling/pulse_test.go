package sampling

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasureEchoPulse(t *testing.T) {
	clk := newSimClock(time.Microsecond)
	r := newRanger(clk, 500*time.Microsecond, time.Millisecond)
	pt := NewPulseTimer(r.trigger, r.echo, clk, PulseTimerConfig{})

	m, err := pt.MeasureEchoPulse()
	require.NoError(t, err)

	assert.Equal(t, time.Millisecond, m.Elapsed())
	assert.False(t, m.Stop.Before(m.Start))
	assert.Equal(t, []bool{true, false}, r.trigger.writes)
	assert.Equal(t, DefaultTriggerWidth, clk.slept)
	assert.InDelta(t, 17.15, DistanceCM(m.Elapsed()), 1e-9)
}

func TestMeasureEchoPulseRetriggersEveryCall(t *testing.T) {
	clk := newSimClock(time.Microsecond)
	r := newRanger(clk, 200*time.Microsecond, 300*time.Microsecond)
	pt := NewPulseTimer(r.trigger, r.echo, clk, PulseTimerConfig{})

	for i := 0; i < 3; i++ {
		m, err := pt.MeasureEchoPulse()
		require.NoError(t, err)
		assert.Equal(t, 300*time.Microsecond, m.Elapsed())
	}
	assert.Equal(t, 3, r.triggers)
}

func TestMeasureEchoPulseNeverRises(t *testing.T) {
	clk := newSimClock(time.Microsecond)
	r := newRanger(clk, 0, 0)
	pt := NewPulseTimer(r.trigger, r.echo, clk, PulseTimerConfig{Timeout: 5 * time.Millisecond})

	began := clk.peek()
	done := make(chan error, 1)
	go func() {
		_, err := pt.MeasureEchoPulse()
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEchoTimeout)
		assert.True(t, IsTimeout(err))
	case <-time.After(5 * time.Second):
		t.Fatal("MeasureEchoPulse did not return")
	}

	spent := clk.peek().Sub(began)
	assert.LessOrEqual(t, spent, 5*time.Millisecond+DefaultTriggerWidth+10*time.Microsecond)
}

func TestMeasureEchoPulseNeverFalls(t *testing.T) {
	clk := newSimClock(time.Microsecond)
	r := newRanger(clk, 100*time.Microsecond, time.Hour)
	pt := NewPulseTimer(r.trigger, r.echo, clk, PulseTimerConfig{Timeout: 2 * time.Millisecond})

	_, err := pt.MeasureEchoPulse()
	assert.ErrorIs(t, err, ErrEchoTimeout)
	assert.Contains(t, err.Error(), "falling edge")
}

func TestMeasureEchoPulseWaitsOutStalePulse(t *testing.T) {
	clk := newSimClock(time.Microsecond)
	r := newRanger(clk, 100*time.Microsecond, 400*time.Microsecond)
	r.staleUntil = clk.peek().Add(250 * time.Microsecond)
	pt := NewPulseTimer(r.trigger, r.echo, clk, PulseTimerConfig{})

	m, err := pt.MeasureEchoPulse()
	require.NoError(t, err)
	assert.Equal(t, 400*time.Microsecond, m.Elapsed())
	assert.False(t, m.Start.Before(r.staleUntil))
}

func TestMeasureEchoPulseStuckHigh(t *testing.T) {
	clk := newSimClock(time.Microsecond)
	r := newRanger(clk, 0, 0)
	r.staleUntil = clk.peek().Add(time.Hour)
	pt := NewPulseTimer(r.trigger, r.echo, clk, PulseTimerConfig{Timeout: time.Millisecond})

	_, err := pt.MeasureEchoPulse()
	assert.ErrorIs(t, err, ErrEchoTimeout)
	assert.Empty(t, r.trigger.writes, "must not trigger while the echo line is high")
}

func TestMeasureEchoPulseLineError(t *testing.T) {
	clk := newSimClock(time.Microsecond)
	r := newRanger(clk, 0, 0)
	r.echo.err = ErrDeviceUnavailable
	pt := NewPulseTimer(r.trigger, r.echo, clk, PulseTimerConfig{})

	_, err := pt.MeasureEchoPulse()
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.False(t, errors.Is(err, ErrEchoTimeout))
}
