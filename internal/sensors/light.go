// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math/rand/v2"

	"periph.io/x/conn/v3/gpio"
)

// Light holds the digital outputs of the two LM393 light modules
// (1 = bright).
type Light struct {
	Sensor1 int `json:"sensor1"`
	Sensor2 int `json:"sensor2"`
}

// Daytime is true when at least half of the sensors see light.
func (l Light) Daytime() bool {
	return float64(l.Sensor1+l.Sensor2)/2.0 >= 0.5
}

// Agree reports whether both sensors read the same level.
func (l Light) Agree() bool { return l.Sensor1 == l.Sensor2 }

type lm393 struct {
	p1, p2 gpio.PinIO
}

// NewLM393Pair configures both pins as plain inputs.
func NewLM393Pair(p1, p2 gpio.PinIO) (Source[Light], error) {
	for _, p := range []gpio.PinIO{p1, p2} {
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("light pin %s: %w", p, err)
		}
	}
	return &lm393{p1: p1, p2: p2}, nil
}

func (l *lm393) Read() (Light, error) {
	return Light{Sensor1: level(l.p1.Read()), Sensor2: level(l.p2.Read())}, nil
}

func level(l gpio.Level) int {
	if l == gpio.High {
		return 1
	}
	return 0
}

// NewSimulatedLight flips each sensor on with 60% probability.
func NewSimulatedLight(rng *rand.Rand) Source[Light] {
	rng = orDefault(rng)
	bit := func() int {
		if rng.Float64() > 0.4 {
			return 1
		}
		return 0
	}
	return SourceFunc[Light](func() (Light, error) {
		return Light{Sensor1: bit(), Sensor2: bit()}, nil
	})
}
