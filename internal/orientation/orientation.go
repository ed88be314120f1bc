// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation turns accelerometer readings into the tilt angles shown
// in the acceleration view.
package orientation

import (
	"math"
)

// Pose is orientation in degrees. Yaw stays 0 without a magnetometer.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ComputePoseFromAccel computes roll and pitch from a gravity vector in any
// unit:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// LowPass is an exponential moving average over the three axes. The zero value
// passes samples through unfiltered.
type LowPass struct {
	// Alpha is the weight of the newest sample, in (0, 1].
	Alpha float64

	primed  bool
	x, y, z float64
}

// Filter feeds one sample and returns the smoothed vector.
func (f *LowPass) Filter(x, y, z float64) (float64, float64, float64) {
	a := f.Alpha
	if a <= 0 || a > 1 {
		a = 1
	}
	if !f.primed {
		f.x, f.y, f.z = x, y, z
		f.primed = true
		return x, y, z
	}
	f.x += a * (x - f.x)
	f.y += a * (y - f.y)
	f.z += a * (z - f.z)
	return f.x, f.y, f.z
}

// Reset forgets the history, e.g. after a new calibration.
func (f *LowPass) Reset() { f.primed = false }
