// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/JojoErer/dashboard-peugeot-106/internal/app"
	"github.com/JojoErer/dashboard-peugeot-106/internal/config"
)

func main() {
	configPath := flag.String("config", "dashboard_config.txt", "configuration file")
	flag.Parse()

	log.Println("starting peugeot-106 GPS producer (NMEA → MQTT)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	defer app.SetupLogging(cfg, true).Close()
	if cfg.MQTTBroker == "" {
		log.Fatalf("MQTT_BROKER is not set")
	}

	client, err := app.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunGPSProducer(ctx, cfg, client); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
