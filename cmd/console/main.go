// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JojoErer/dashboard-peugeot-106/internal/app"
	"github.com/JojoErer/dashboard-peugeot-106/internal/config"
)

func main() {
	configPath := flag.String("config", "dashboard_config.txt", "configuration file")
	web := flag.Bool("web", false, "also serve the web client")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// the terminal belongs to the UI, so logs go to a file only
	if cfg.LogFile != "" {
		defer app.SetupLogging(cfg, false).Close()
	} else {
		f, err := tea.LogToFile("console.log", "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	}
	log.Println("starting peugeot-106 dashboard (terminal)")

	rt, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = rt.Run(ctx, *web, func(ctx context.Context) error { return app.RunConsole(ctx, rt.Dash) })
	if err != nil && !errors.Is(err, app.ErrQuit) {
		log.Printf("fatal: %v", err)
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	}
}
