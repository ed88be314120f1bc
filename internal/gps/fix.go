// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "time"

// Fix is the dashboard's view of the receiver: the last known value of every
// field, suitable for JSON and MQTT. Nil pointers mean "never seen".
type Fix struct {
	Latitude   *float64 `json:"lat,omitempty"`       // decimal degrees
	Longitude  *float64 `json:"lon,omitempty"`       // decimal degrees
	SpeedKMH   float64  `json:"speed_kmh"`           // ground speed
	Timestamp  *string  `json:"timestamp,omitempty"` // local "HH:MM"
	FixStatus  int      `json:"fix_status"`          // GGA quality, 0 = no fix
	Satellites int      `json:"satellites"`
	HDOP       *float64 `json:"hdop,omitempty"`

	// UpdatedAt is when the cache last received any field. Zero until then.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPosition reports whether both coordinates are known.
func (f Fix) HasPosition() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Stale reports whether the fix is older than maxAge at now. A fix that never
// received data is always stale.
func (f Fix) Stale(now time.Time, maxAge time.Duration) bool {
	if f.UpdatedAt.IsZero() {
		return true
	}
	return now.Sub(f.UpdatedAt) > maxAge
}

// Update is a partial fix produced from a single sentence. Nil fields were
// not present (or not valid) in that sentence.
type Update struct {
	Latitude   *float64
	Longitude  *float64
	SpeedKMH   *float64
	Timestamp  *string
	FixStatus  *int
	Satellites *int
	HDOP       *float64
}

// Empty reports whether the update carries no fields at all.
func (u Update) Empty() bool {
	return u.Latitude == nil && u.Longitude == nil && u.SpeedKMH == nil &&
		u.Timestamp == nil && u.FixStatus == nil && u.Satellites == nil && u.HDOP == nil
}

// Merge overlays the present fields of other onto u.
func (u Update) Merge(other Update) Update {
	if other.Latitude != nil {
		u.Latitude = other.Latitude
	}
	if other.Longitude != nil {
		u.Longitude = other.Longitude
	}
	if other.SpeedKMH != nil {
		u.SpeedKMH = other.SpeedKMH
	}
	if other.Timestamp != nil {
		u.Timestamp = other.Timestamp
	}
	if other.FixStatus != nil {
		u.FixStatus = other.FixStatus
	}
	if other.Satellites != nil {
		u.Satellites = other.Satellites
	}
	if other.HDOP != nil {
		u.HDOP = other.HDOP
	}
	return u
}

func ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
