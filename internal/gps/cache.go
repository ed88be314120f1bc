// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"github.com/benbjohnson/clock"
)

// Cache holds the sticky last-known fix. Present fields of each update
// overwrite the cache; absent fields never clear it. There is no expiry:
// consumers that care use Fix.Stale.
//
// A Cache is owned by the polling goroutine and is not safe for concurrent use.
type Cache struct {
	clock clock.Clock
	fix   Fix
}

// NewCache returns an empty cache stamping updates with clk.
func NewCache(clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.New()
	}
	return &Cache{clock: clk}
}

// Update applies a partial fix. It reports whether anything was applied.
func (c *Cache) Update(u Update) bool {
	if u.Empty() {
		return false
	}
	if u.Latitude != nil {
		c.fix.Latitude = clonePtr(u.Latitude)
	}
	if u.Longitude != nil {
		c.fix.Longitude = clonePtr(u.Longitude)
	}
	if u.SpeedKMH != nil {
		c.fix.SpeedKMH = *u.SpeedKMH
	}
	if u.Timestamp != nil {
		c.fix.Timestamp = clonePtr(u.Timestamp)
	}
	if u.FixStatus != nil {
		c.fix.FixStatus = *u.FixStatus
	}
	if u.Satellites != nil {
		c.fix.Satellites = *u.Satellites
	}
	if u.HDOP != nil {
		c.fix.HDOP = clonePtr(u.HDOP)
	}
	c.fix.UpdatedAt = c.clock.Now()
	return true
}

// Snapshot returns a deep copy of the current fix.
func (c *Cache) Snapshot() Fix {
	f := c.fix
	f.Latitude = clonePtr(c.fix.Latitude)
	f.Longitude = clonePtr(c.fix.Longitude)
	f.Timestamp = clonePtr(c.fix.Timestamp)
	f.HDOP = clonePtr(c.fix.HDOP)
	return f
}
