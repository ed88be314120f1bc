// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/warthog618/go-gpiocdev"
)

// RPMMeter turns a pulse count into revolutions per minute. The reading is
// refreshed once per interval and held in between.
type RPMMeter struct {
	clock    clock.Clock
	ppr      float64
	interval time.Duration

	pulses atomic.Uint64
	last   time.Time
	rpm    int
}

// NewRPMMeter returns a meter for pulsesPerRev pulses per revolution.
func NewRPMMeter(clk clock.Clock, pulsesPerRev int, interval time.Duration) *RPMMeter {
	if clk == nil {
		clk = clock.New()
	}
	if pulsesPerRev <= 0 {
		pulsesPerRev = 1
	}
	return &RPMMeter{clock: clk, ppr: float64(pulsesPerRev), interval: interval, last: clk.Now()}
}

// Pulse counts one rising edge. Safe to call from the GPIO event goroutine.
func (m *RPMMeter) Pulse() { m.pulses.Add(1) }

// Read returns the current RPM.
func (m *RPMMeter) Read() (int, error) {
	now := m.clock.Now()
	elapsed := now.Sub(m.last)
	if elapsed >= m.interval && elapsed > 0 {
		n := m.pulses.Swap(0)
		m.rpm = int(float64(n) / m.ppr * 60 / elapsed.Seconds())
		m.last = now
	}
	return m.rpm, nil
}

// gpioRPM feeds an RPMMeter from edge events on a GPIO character device line.
type gpioRPM struct {
	*RPMMeter
	line *gpiocdev.Line
}

// NewGPIORPM requests a rising-edge watch on offset of chip.
func NewGPIORPM(chip string, offset int, meter *RPMMeter) (Source[int], error) {
	r := &gpioRPM{RPMMeter: meter}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { meter.Pulse() }),
		gpiocdev.WithConsumer("dashboard-rpm"),
	)
	if err != nil {
		return nil, fmt.Errorf("rpm line %s:%d: %w", chip, offset, err)
	}
	r.line = line
	return r, nil
}

func (r *gpioRPM) Close() error { return r.line.Close() }

// simulatedRPM eases toward a new random target every interval.
type simulatedRPM struct {
	clock    clock.Clock
	rng      *rand.Rand
	interval time.Duration
	last     time.Time
	rpm      int
}

// NewSimulatedRPM returns an engine idling between 800 and 4000 RPM.
func NewSimulatedRPM(clk clock.Clock, interval time.Duration, rng *rand.Rand) Source[int] {
	if clk == nil {
		clk = clock.New()
	}
	return &simulatedRPM{clock: clk, rng: orDefault(rng), interval: interval, last: clk.Now()}
}

func (s *simulatedRPM) Read() (int, error) {
	now := s.clock.Now()
	if now.Sub(s.last) >= s.interval {
		target := 800 + s.rng.IntN(3201)
		s.rpm += int(float64(target-s.rpm) * 0.2)
		s.last = now
	}
	return s.rpm, nil
}
