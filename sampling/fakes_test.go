package sampling

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// simClock is a deterministic MonotonicClock.  Every Now call advances time
// by step, standing in for the cost of one spin iteration.
type simClock struct {
	mu    sync.Mutex
	now   time.Time
	step  time.Duration
	slept time.Duration
}

func newSimClock(step time.Duration) *simClock {
	return &simClock{now: time.Date(2024, 5, 1, 11, 43, 0, 0, time.UTC), step: step}
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *simClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
}

// peek returns the current time without advancing it.
func (c *simClock) peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type fakeLine struct {
	dir        Direction
	configured bool
	level      bool
	writes     []bool
	err        error
	read       func() bool
	onSet      func(high bool)
}

func (l *fakeLine) Configure(d Direction) error {
	if l.err != nil {
		return l.err
	}
	l.dir = d
	l.configured = true
	return nil
}

func (l *fakeLine) SetOutput(high bool) error {
	if l.err != nil {
		return l.err
	}
	l.level = high
	l.writes = append(l.writes, high)
	if l.onSet != nil {
		l.onSet(high)
	}
	return nil
}

func (l *fakeLine) ReadInput() (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.read != nil {
		return l.read(), nil
	}
	return l.level, nil
}

type fakePWM struct {
	freq     physic.Frequency
	duty     gpio.Duty
	running  bool
	starts   int
	stops    int
	startErr error
	stopErr  error
}

func (p *fakePWM) Start(f physic.Frequency, d gpio.Duty) error {
	p.starts++
	if p.startErr != nil {
		return p.startErr
	}
	p.freq, p.duty, p.running = f, d, true
	return nil
}

func (p *fakePWM) Stop() error {
	p.stops++
	p.running = false
	return p.stopErr
}

// ranger simulates an HC-SR04: the echo rises rise after the trigger falls
// and stays high for width.  staleUntil keeps the echo high from the start
// of the test, as if an earlier pulse were still in flight.
type ranger struct {
	clk        *simClock
	trigger    *fakeLine
	echo       *fakeLine
	rise       time.Duration
	width      time.Duration
	staleUntil time.Time
	firedAt    time.Time
	fired      bool
	triggers   int
}

func newRanger(clk *simClock, rise, width time.Duration) *ranger {
	r := &ranger{clk: clk, rise: rise, width: width}
	r.trigger = &fakeLine{onSet: func(high bool) {
		if high {
			r.triggers++
			return
		}
		if r.triggers > 0 {
			r.firedAt = clk.peek()
			r.fired = true
		}
	}}
	r.echo = &fakeLine{read: r.level}
	return r
}

func (r *ranger) level() bool {
	now := r.clk.peek()
	if now.Before(r.staleUntil) {
		return true
	}
	if !r.fired || r.width <= 0 {
		return false
	}
	t := now.Sub(r.firedAt)
	return t >= r.rise && t < r.rise+r.width
}

// adcSim simulates an ADC0804: INTR stays high for conv after WR rises and
// the data bus only drives value while RD is low.
type adcSim struct {
	clk   *simClock
	conv  time.Duration
	value uint8
	hang  bool
	wrAt  time.Time
	lines ADCLines
	wr    *fakeLine
	rd    *fakeLine
	intr  *fakeLine
	data  [BusWidth]*fakeLine
}

func newADCSim(clk *simClock, conv time.Duration, value uint8) *adcSim {
	s := &adcSim{clk: clk, conv: conv, value: value}
	s.wr = &fakeLine{level: true, onSet: func(high bool) {
		if high {
			s.wrAt = clk.peek()
		}
	}}
	s.rd = &fakeLine{level: true}
	s.intr = &fakeLine{read: func() bool {
		return s.hang || clk.peek().Sub(s.wrAt) < s.conv
	}}
	s.lines = ADCLines{WR: s.wr, RD: s.rd, INTR: s.intr}
	for i := range s.data {
		i := i
		s.data[i] = &fakeLine{read: func() bool {
			if s.rd.level {
				return false
			}
			return SplitBits(s.value)[i]
		}}
		s.lines.Data[i] = s.data[i]
	}
	return s
}
