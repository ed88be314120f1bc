// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math/rand/v2"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// Env is one temperature/humidity sample.
type Env struct {
	Source      string  `json:"source"` // "inside" or "outside"
	Temperature float64 `json:"temp_c"`
	Humidity    float64 `json:"humidity_pct"`
	PressureHPa float64 `json:"pressure_hpa,omitempty"`
}

type bme280 struct {
	name string
	dev  *bmxx80.Dev
}

// NewBME280 opens a BME280 (or BMP280, without humidity) at addr.
func NewBME280(bus i2c.Bus, addr uint16, name string) (Source[Env], error) {
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("%s bme280 init at 0x%02X: %w", name, addr, err)
	}
	return &bme280{name: name, dev: dev}, nil
}

func (b *bme280) Read() (Env, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return Env{}, fmt.Errorf("%s bme280 sense: %w", b.name, err)
	}
	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return Env{
		Source:      b.name,
		Temperature: e.Temperature.Celsius(),
		Humidity:    float64(e.Humidity) / float64(physic.PercentRH),
		PressureHPa: pressurePa / 100.0, // 1 hPa = 100 Pa
	}, nil
}

func (b *bme280) Close() error { return b.dev.Halt() }

// EnvRange bounds simulated readings.
type EnvRange struct {
	TempMin, TempMax         float64
	HumidityMin, HumidityMax float64
}

var (
	InsideRange  = EnvRange{18, 25, 30, 70}
	OutsideRange = EnvRange{10, 35, 20, 80}
)

// NewSimulatedEnv returns random readings inside rg.
func NewSimulatedEnv(name string, rg EnvRange, rng *rand.Rand) Source[Env] {
	rng = orDefault(rng)
	return SourceFunc[Env](func() (Env, error) {
		return Env{
			Source:      name,
			Temperature: uniform(rng, rg.TempMin, rg.TempMax),
			Humidity:    uniform(rng, rg.HumidityMin, rg.HumidityMax),
		}, nil
	})
}
