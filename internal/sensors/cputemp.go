// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// preferred thermal sensor keys, most specific first
var cpuSensorKeys = []string{"cpu_thermal", "cpu-thermal", "soc_thermal", "coretemp_package_id_0", "k10temp_tctl"}

// ProbeThermal finds the sensor key reporting the SoC temperature.
func ProbeThermal() Capability[string] {
	temps, err := host.SensorsTemperatures()
	if len(temps) == 0 {
		if err == nil {
			err = errors.New("no thermal sensors")
		}
		return Simulated[string]("cpu temperature: %v", err)
	}
	for _, want := range cpuSensorKeys {
		for _, t := range temps {
			if strings.HasPrefix(t.SensorKey, want) && t.Temperature > 0 {
				return Real(t.SensorKey)
			}
		}
	}
	return Real(temps[0].SensorKey)
}

// NewCPUTemp reads the given thermal sensor in °C.
func NewCPUTemp(key string) (Source[float64], error) {
	src := SourceFunc[float64](func() (float64, error) {
		temps, err := host.SensorsTemperatures()
		for _, t := range temps {
			if t.SensorKey == key {
				return t.Temperature, nil
			}
		}
		if err != nil {
			return 0, fmt.Errorf("cpu temperature: %w", err)
		}
		return 0, fmt.Errorf("cpu temperature: sensor %q disappeared", key)
	})
	if _, err := src.Read(); err != nil {
		return nil, err
	}
	return src, nil
}

// NewSimulatedCPUTemp returns 35–55 °C.
func NewSimulatedCPUTemp(rng *rand.Rand) Source[float64] {
	rng = orDefault(rng)
	return SourceFunc[float64](func() (float64, error) {
		return uniform(rng, 35, 55), nil
	})
}
