// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/JojoErer/dashboard-peugeot-106/internal/config"
	"github.com/JojoErer/dashboard-peugeot-106/internal/gps"
	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
)

// RunConsoleMQTT prints dashboard telemetry from the broker until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	stateToken := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s state.Dashboard
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: state unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(out, formatStateLine(s))
	})
	stateToken.Wait()
	if stateToken.Error() != nil {
		return stateToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicState)

	gpsToken := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(out, formatFixLine(f))
	})
	gpsToken.Wait()
	if gpsToken.Error() != nil {
		return gpsToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGPS)

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

func formatStateLine(s state.Dashboard) string {
	return fmt.Sprintf(
		"[DASH] %s view=%-5s speed=%5.1fkm/h rpm=%4d in=%4.1f°C out=%4.1f°C pi=%4.1f°C ax=%+5.2f ay=%+5.2f day=%v",
		s.GPSTime, s.CurrentView, s.Velocity, s.RPM, s.TempInside, s.TempOutside, s.PiTemperature, s.AX, s.AY, s.IsDaytime,
	)
}

func formatFixLine(f gps.Fix) string {
	pos := "no position"
	if f.HasPosition() {
		pos = fmt.Sprintf("lat=%.6f lon=%.6f", *f.Latitude, *f.Longitude)
	}
	ts := "--:--"
	if f.Timestamp != nil {
		ts = *f.Timestamp
	}
	return fmt.Sprintf("[GPS ] %s %s speed=%.1fkm/h fix=%d sats=%d", ts, pos, f.SpeedKMH, f.FixStatus, f.Satellites)
}
