// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"time"

	"github.com/JojoErer/dashboard-peugeot-106/internal/config"
	"github.com/JojoErer/dashboard-peugeot-106/internal/gps"
)

// OpenGPSFeed opens the configured serial receiver, falling back to the
// simulated feed. The bool reports whether real hardware is in use.
func OpenGPSFeed(cfg *config.Config) (gps.Feed, bool) {
	if !cfg.GPSSimulate {
		feed, err := gps.OpenSerialFeed(cfg.GPSSerialPort, cfg.GPSBaudRate)
		if err == nil {
			return feed, true
		}
		log.Printf("gps: %v; using simulated receiver", err)
	}
	return gps.NewSimulatedFeed(gps.Home.Lat, gps.Home.Lon, nil, nil), false
}

// RunGPSProducer decodes the receiver into a cache and publishes the fix as
// JSON to cfg.TopicGPS whenever a sentence changed it. Useful when the
// receiver is on a different machine than the dashboard.
func RunGPSProducer(ctx context.Context, cfg *config.Config, pub Publisher) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	feed, hw := OpenGPSFeed(cfg)
	defer feed.Close()
	if !hw {
		log.Printf("gps: publishing simulated fixes")
	}

	cache := gps.NewCache(nil)
	dec := gps.Decoder{Location: loc, Strict: cfg.GPSVerifyChecksum}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-feed.Lines():
			if !ok {
				log.Printf("gps: feed closed")
				return nil
			}
			if !cache.Update(dec.Decode(line)) {
				continue
			}
			fix := cache.Snapshot()
			publishJSON(pub, cfg.TopicGPS, fix)
			if fix.HasPosition() {
				log.Printf("gps: published fix lat=%.6f lon=%.6f speed=%.1fkm/h sats=%d", *fix.Latitude, *fix.Longitude, fix.SpeedKMH, fix.Satellites)
			}
		}
	}
}
