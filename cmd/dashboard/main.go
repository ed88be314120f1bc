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

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	defer app.SetupLogging(cfg, true).Close()

	log.Println("starting peugeot-106 dashboard")

	rt, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx, true); err != nil {
		log.Printf("fatal: %v", err)
		return
	}
	log.Println("dashboard stopped")
}
