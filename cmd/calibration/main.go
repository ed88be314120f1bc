// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Bench calibration for the MPU-6050 accelerometer.
//
// The car (or the bare sensor) must stand still on a level surface. The
// offsets are the plain average of every axis and are written to
// CALIBRATION_FILE, which a running dashboard picks up on its own.
//
// Run:
//
//	go run ./cmd/calibration -samples 200
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/JojoErer/dashboard-peugeot-106/internal/calibration"
	"github.com/JojoErer/dashboard-peugeot-106/internal/config"
	"github.com/JojoErer/dashboard-peugeot-106/internal/sensors"
)

func main() {
	configPath := flag.String("config", "dashboard_config.txt", "configuration file")
	samples := flag.Int("samples", calibration.DefaultSamples, "number of readings to average")
	interval := flag.Duration("interval", 10*time.Millisecond, "delay between readings")
	yes := flag.Bool("y", false, "do not wait for Enter")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	bus, ok := sensors.ProbeI2C(cfg.I2CBus).Handle()
	if !ok {
		log.Fatalf("fatal: I2C bus %s is not available", cfg.I2CBus)
	}
	defer bus.Close()

	accel, err := sensors.NewMPU6050(bus, cfg.MPU6050Addr)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if old, err := calibration.Load(cfg.CalibrationFile); err == nil {
		fmt.Printf("Current offsets: x=%.4f y=%.4f z=%.4f\n", old.X, old.Y, old.Z)
	}

	if !*yes {
		fmt.Print("Keep the sensor still and level, then press Enter...")
		if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Sampling %d readings...\n", *samples)
	o, err := calibration.Measure(ctx, accel, *samples, *interval, nil)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := calibration.Save(cfg.CalibrationFile, o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	fmt.Printf("New offsets:     x=%.4f y=%.4f z=%.4f\nSaved to %s\n", o.X, o.Y, o.Z, cfg.CalibrationFile)
}
