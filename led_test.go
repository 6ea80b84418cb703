package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"pisense/sampling"
)

func TestLEDPrefersPrimary(t *testing.T) {
	primary := &recordingSink{}
	fallback := &gpiotest.Pin{N: "GPIO4", Num: 4}
	led := NewLED(primary, fallback)

	require.NoError(t, led.Set(true))

	assert.Equal(t, []gpio.Level{gpio.High}, primary.history())
	assert.Equal(t, gpio.Low, fallback.Read())
	assert.Equal(t, "on", led.Status())
}

func TestLEDFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &recordingSink{err: errors.New("permission denied")}
	fallback := &gpiotest.Pin{N: "GPIO4", Num: 4}
	led := NewLED(primary, fallback)

	require.NoError(t, led.Set(true))
	assert.Equal(t, gpio.High, fallback.Read())

	require.NoError(t, led.Set(false))
	assert.Equal(t, gpio.Low, fallback.Read())
}

func TestLEDReportsBothFailures(t *testing.T) {
	led := NewLED(
		&recordingSink{err: errors.New("sysfs busy")},
		&recordingSink{err: errors.New("gpio busy")},
	)

	err := led.Set(true)

	assert.ErrorContains(t, err, "sysfs busy")
	assert.ErrorContains(t, err, "gpio busy")
}

func TestLEDWithoutSinks(t *testing.T) {
	led := NewLED(nil, nil)

	assert.ErrorIs(t, led.Set(true), sampling.ErrDeviceUnavailable)
	assert.Equal(t, "unknown", led.Status())
}

func TestLEDStatusFollowsTheSinkWritten(t *testing.T) {
	primary := &recordingSink{}
	fallback := &gpiotest.Pin{N: "GPIO4", Num: 4}
	led := NewLED(primary, fallback)

	primary.err = errors.New("permission denied")
	require.NoError(t, led.Set(true))
	assert.Equal(t, gpio.Low, primary.Read())
	assert.Equal(t, "on", led.Status())

	primary.err = nil
	require.NoError(t, led.Set(false))
	assert.Equal(t, "off", led.Status())
	require.NoError(t, led.Set(true))
	assert.Equal(t, "on", led.Status())
}
