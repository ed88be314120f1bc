// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// maprender writes the map view for a position to a PNG, to check a tile
// folder before it goes into the car.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/disintegration/imaging"

	"github.com/JojoErer/dashboard-peugeot-106/internal/config"
	"github.com/JojoErer/dashboard-peugeot-106/internal/gps"
	"github.com/JojoErer/dashboard-peugeot-106/internal/maptile"
)

func main() {
	configPath := flag.String("config", "dashboard_config.txt", "configuration file")
	lat := flag.Float64("lat", gps.Home.Lat, "center latitude")
	lon := flag.Float64("lon", gps.Home.Lon, "center longitude")
	out := flag.String("out", "map.png", "output file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	fsys := os.DirFS(cfg.MapFolder)
	layout := maptile.DetectLayout(fsys, cfg.MapZoom, *lat, *lon)
	if cfg.TileLayout != "auto" {
		var err error
		if layout, err = maptile.ParseLayout(cfg.TileLayout); err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}

	r := &maptile.Renderer{
		Store:    maptile.NewDirStore(fsys, layout),
		Zoom:     cfg.MapZoom,
		TileSize: cfg.TileSize,
		ViewSize: cfg.ViewSize,
	}
	vp := r.Viewport(*lat, *lon)
	log.Printf("%s layout, tiles x %d..%d y %d..%d", layout, vp.MinTileX, vp.MaxTileX, vp.MinTileY, vp.MaxTileY)

	img, err := r.Render(*lat, *lon)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := imaging.Save(img, *out); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Printf("wrote %s", *out)
}
