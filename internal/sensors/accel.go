// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"periph.io/x/conn/v3/i2c"
)

// Accel is one accelerometer sample in g.
type Accel struct {
	X float64 `json:"ax"`
	Y float64 `json:"ay"`
	Z float64 `json:"az"`
}

// MPU-6050 registers
const (
	MPU6050Addr = 0x68

	mpuRegAccelXOutH = 0x3B
	mpuRegPwrMgmt1   = 0x6B
	mpuRegWhoAmI     = 0x75

	mpuWhoAmI = 0x68

	// ±2 g full scale
	mpuLSBPerG = 16384.0
)

// mpu6050 reads the accelerometer block of an MPU-6050 over I2C.
type mpu6050 struct {
	dev *i2c.Dev
}

// NewMPU6050 identifies and wakes an MPU-6050 on bus.
func NewMPU6050(bus i2c.Bus, addr uint16) (Source[Accel], error) {
	d := &i2c.Dev{Bus: bus, Addr: addr}

	who := make([]byte, 1)
	if err := d.Tx([]byte{mpuRegWhoAmI}, who); err != nil {
		return nil, fmt.Errorf("mpu6050 who_am_i: %w", err)
	}
	if who[0] != mpuWhoAmI {
		return nil, fmt.Errorf("mpu6050: unexpected WHO_AM_I 0x%02X at 0x%02X", who[0], addr)
	}
	// clear SLEEP, internal oscillator
	if _, err := d.Write([]byte{mpuRegPwrMgmt1, 0x00}); err != nil {
		return nil, fmt.Errorf("mpu6050 wake: %w", err)
	}
	return &mpu6050{dev: d}, nil
}

func (m *mpu6050) Read() (Accel, error) {
	buf := make([]byte, 6)
	if err := m.dev.Tx([]byte{mpuRegAccelXOutH}, buf); err != nil {
		return Accel{}, fmt.Errorf("mpu6050 read accel: %w", err)
	}
	return Accel{
		X: float64(int16(binary.BigEndian.Uint16(buf[0:2]))) / mpuLSBPerG,
		Y: float64(int16(binary.BigEndian.Uint16(buf[2:4]))) / mpuLSBPerG,
		Z: float64(int16(binary.BigEndian.Uint16(buf[4:6]))) / mpuLSBPerG,
	}, nil
}

// NewSimulatedAccel returns a noisy, roughly level accelerometer.
func NewSimulatedAccel(rng *rand.Rand) Source[Accel] {
	rng = orDefault(rng)
	return SourceFunc[Accel](func() (Accel, error) {
		return Accel{
			X: uniform(rng, -0.5, 0.5),
			Y: uniform(rng, -0.5, 0.5),
			Z: uniform(rng, 0.8, 1.2),
		}, nil
	})
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func orDefault(rng *rand.Rand) *rand.Rand {
	if rng == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rng
}
