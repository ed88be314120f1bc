// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
)

// Publisher is the part of an MQTT client telemetry needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// ConnectMQTT connects to broker and blocks until the session is up.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to %s as %s", broker, clientID)
	return client, nil
}

// gpsFields are the state fields that come from the GPS cache.
var gpsFields = []string{"velocity", "gpsTime", "centerLat", "centerLon", "hasPosition", "fixStatus", "satellites", "gpsStale"}

// RunTelemetry publishes every state change to stateTopic and, when a GPS
// field changed, the cached fix to gpsTopic. Both are retained so late
// subscribers get the latest value. It returns when ctx is done.
func RunTelemetry(ctx context.Context, pub Publisher, d *Dashboard, stateTopic, gpsTopic string) error {
	changes, unsubscribe := d.Store().Subscribe(8)
	defer unsubscribe()

	log.Printf("mqtt: publishing state to %s and fixes to %s", stateTopic, gpsTopic)
	publishChanges(ctx, pub, d, changes, stateTopic, gpsTopic)
	return nil
}

func publishChanges(ctx context.Context, pub Publisher, d *Dashboard, changes <-chan state.Change, stateTopic, gpsTopic string) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			publishJSON(pub, stateTopic, c.State)
			if slices.ContainsFunc(c.Fields, func(f string) bool { return slices.Contains(gpsFields, f) }) {
				publishJSON(pub, gpsTopic, d.GPSFix())
			}
		}
	}
}

func publishJSON(pub Publisher, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqtt: marshal for %s: %v", topic, err)
		return
	}
	token := pub.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("mqtt: publish to %s: %v", topic, token.Error())
	}
}
