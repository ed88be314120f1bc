// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"

	"github.com/JojoErer/dashboard-peugeot-106/internal/calibration"
	"github.com/JojoErer/dashboard-peugeot-106/internal/config"
	"github.com/JojoErer/dashboard-peugeot-106/internal/gps"
	"github.com/JojoErer/dashboard-peugeot-106/internal/maptile"
	"github.com/JojoErer/dashboard-peugeot-106/internal/sensors"
	"github.com/JojoErer/dashboard-peugeot-106/internal/settings"
	"github.com/JojoErer/dashboard-peugeot-106/internal/updater"
	"github.com/JojoErer/dashboard-peugeot-106/internal/views"
)

// settingsSaveDelay is the quiet period before view changes hit the disk.
const settingsSaveDelay = time.Second

// Runtime is a dashboard wired to whatever hardware the host has.
type Runtime struct {
	Config  *config.Config
	Dash    *Dashboard
	Maps    *maptile.Renderer
	Updater *updater.Updater
	Report  *sensors.Report
	Saver   *settings.Saver

	bus     i2c.BusCloser // nil when I2C is simulated
	closers []io.Closer
}

// Build probes the hardware, loads the persisted files and wires a
// Dashboard. Missing hardware falls back to simulation; only a broken
// configuration is an error.
func Build(cfg *config.Config) (*Runtime, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}

	rt := &Runtime{Config: cfg, Report: &sensors.Report{}}
	src := rt.openSources(cfg)

	saved, err := settings.Load(cfg.SettingsFile)
	if err != nil {
		log.Printf("settings: %v; using defaults", err)
	}
	layout, err := views.LoadLayout(cfg.ViewsFile)
	if err != nil {
		rt.Close()
		return nil, err
	}
	// the layout's overlay default only applies until the user picked one
	if layout.OverlayVisible != nil && !fileExists(cfg.SettingsFile) {
		saved.OverlayVisible = *layout.OverlayVisible
	}
	if !fileExists(cfg.SettingsFile) && layout.Default != "" {
		saved.View = layout.Default
	}
	rt.Saver = settings.NewSaver(cfg.SettingsFile, settingsSaveDelay)

	offsets, err := calibration.Load(cfg.CalibrationFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("calibration: %v; using zero offsets", err)
		}
		offsets = calibration.Offsets{}
	}

	version := updater.FileVersion(filepath.Join(cfg.RepoPath, cfg.VersionFile))

	rt.Dash = NewDashboard(src, Options{
		Location:        loc,
		StrictChecksum:  cfg.GPSVerifyChecksum,
		StaleAfter:      cfg.StaleAfter(),
		MaxLinesPerTick: cfg.GPSMaxLinesPerTick,
		Layout:          layout,
		Settings:        saved,
		Saver:           rt.Saver,
		CalibrationFile: cfg.CalibrationFile,
		Offsets:         offsets,
		Smoothing:       0.3,
		InitStatus:      rt.Report.String(),
		Version:         version,
	})

	rt.Updater = updater.New(cfg.RepoPath, version, rt.Dash.UpdateStatus, updater.WithPuller(newPuller(cfg)))
	rt.Dash.AttachUpdater(rt.Updater)

	rt.Maps, err = newMapRenderer(cfg)
	if err != nil {
		log.Printf("map: %v; map view disabled", err)
	}

	log.Printf("dashboard: %s", strings.ReplaceAll(rt.Report.String(), "\n", "; "))
	return rt, nil
}

func (rt *Runtime) openSources(cfg *config.Config) Sources {
	r := rt.Report
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 106))

	busCap := sensors.ProbeI2C(cfg.I2CBus)
	if b, ok := busCap.Handle(); ok {
		rt.bus = b
		rt.closers = append(rt.closers, b)
	}

	var src Sources
	src.Accel = sensors.Select(r, "accelerometer", busCap,
		func(b i2c.BusCloser) (sensors.Source[sensors.Accel], error) {
			return sensors.NewMPU6050(b, cfg.MPU6050Addr)
		},
		func() sensors.Source[sensors.Accel] { return sensors.NewSimulatedAccel(rng) })
	src.EnvInside = sensors.Select(r, "inside climate", busCap,
		func(b i2c.BusCloser) (sensors.Source[sensors.Env], error) {
			return sensors.NewBME280(b, cfg.BMEInsideAddr, "inside")
		},
		func() sensors.Source[sensors.Env] {
			return sensors.NewSimulatedEnv("inside", sensors.InsideRange, rng)
		})
	src.EnvOutside = sensors.Select(r, "outside climate", busCap,
		func(b i2c.BusCloser) (sensors.Source[sensors.Env], error) {
			return sensors.NewBME280(b, cfg.BMEOutsideAddr, "outside")
		},
		func() sensors.Source[sensors.Env] {
			return sensors.NewSimulatedEnv("outside", sensors.OutsideRange, rng)
		})

	src.Light = sensors.Select(r, "light", lightPins(cfg.LightPin1, cfg.LightPin2),
		func(p [2]gpio.PinIO) (sensors.Source[sensors.Light], error) {
			return sensors.NewLM393Pair(p[0], p[1])
		},
		func() sensors.Source[sensors.Light] { return sensors.NewSimulatedLight(rng) })

	rpmInterval := time.Duration(cfg.RPMInterval) * time.Millisecond
	src.RPM = sensors.Select(r, "rpm", sensors.ProbeGPIOChip(chipPath(cfg.RPMChip)),
		func(path string) (sensors.Source[int], error) {
			meter := sensors.NewRPMMeter(nil, cfg.RPMPulsesPerRev, rpmInterval)
			return sensors.NewGPIORPM(path, cfg.RPMOffset, meter)
		},
		func() sensors.Source[int] { return sensors.NewSimulatedRPM(nil, rpmInterval, rng) })

	src.CPUTemp = sensors.Select(r, "cpu temperature", sensors.ProbeThermal(),
		func(probed string) (sensors.Source[float64], error) {
			if cfg.ThermalSensorKey != "" && cfg.ThermalSensorKey != probed {
				if s, err := sensors.NewCPUTemp(cfg.ThermalSensorKey); err == nil {
					return s, nil
				}
			}
			return sensors.NewCPUTemp(probed)
		},
		func() sensors.Source[float64] { return sensors.NewSimulatedCPUTemp(rng) })

	src.Buttons = sensors.NewButtons(nil, time.Duration(cfg.ButtonDebounce)*time.Millisecond,
		map[string]sensors.Capability[gpio.PinIO]{
			sensors.ButtonNext:  sensors.ProbePin(cfg.ButtonNextPin),
			sensors.ButtonExtra: sensors.ProbePin(cfg.ButtonExtraPin),
		}, r)

	feed, hw := OpenGPSFeed(cfg)
	src.GPS, src.GPSConnected = feed, hw
	if hw {
		r.Add("gps", true, "")
	} else {
		r.Add("gps", false, "no receiver on "+cfg.GPSSerialPort)
	}
	rt.closers = append(rt.closers, feed)

	for _, s := range []any{src.Accel, src.EnvInside, src.EnvOutside, src.Light, src.RPM} {
		if c, ok := s.(io.Closer); ok {
			rt.closers = append(rt.closers, c)
		}
	}
	return src
}

// lightPins is real only when both LM393 outputs are available.
func lightPins(name1, name2 string) sensors.Capability[[2]gpio.PinIO] {
	p1, ok1 := sensors.ProbePin(name1).Handle()
	if !ok1 {
		return sensors.Simulated[[2]gpio.PinIO]("GPIO pin %s unavailable", name1)
	}
	p2, ok2 := sensors.ProbePin(name2).Handle()
	if !ok2 {
		return sensors.Simulated[[2]gpio.PinIO]("GPIO pin %s unavailable", name2)
	}
	return sensors.Real([2]gpio.PinIO{p1, p2})
}

func chipPath(chip string) string {
	if strings.HasPrefix(chip, "/") {
		return chip
	}
	return "/dev/" + chip
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newPuller(cfg *config.Config) updater.Puller {
	if cfg.UpdateMethod == "go-git" {
		return &updater.GoGitPuller{Dir: cfg.RepoPath}
	}
	return &updater.ExecPuller{Dir: cfg.RepoPath}
}

// newMapRenderer serves tiles from cfg.MapFolder, detecting the row
// numbering from the tile under the home position when asked to.
func newMapRenderer(cfg *config.Config) (*maptile.Renderer, error) {
	if _, err := os.Stat(cfg.MapFolder); err != nil {
		return nil, err
	}
	fsys := os.DirFS(cfg.MapFolder)

	var layout maptile.Layout
	if cfg.TileLayout == "auto" {
		layout = maptile.DetectLayout(fsys, cfg.MapZoom, gps.Home.Lat, gps.Home.Lon)
	} else {
		var err error
		if layout, err = maptile.ParseLayout(cfg.TileLayout); err != nil {
			return nil, err
		}
	}
	log.Printf("map: %s tiles from %s at zoom %d", layout, cfg.MapFolder, cfg.MapZoom)

	return &maptile.Renderer{
		Store:    maptile.NewCachedStore(maptile.NewDirStore(fsys, layout), cfg.TileCacheSize),
		Zoom:     cfg.MapZoom,
		TileSize: cfg.TileSize,
		ViewSize: cfg.ViewSize,
	}, nil
}

// Run polls the dashboard and serves every configured surface until ctx is
// done or one of them fails. extra runs alongside, e.g. the terminal UI.
func (rt *Runtime) Run(ctx context.Context, web bool, extra ...func(context.Context) error) error {
	cfg := rt.Config
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rt.Dash.Run(ctx, cfg.Poll()) })
	g.Go(func() error {
		err := calibration.Watch(ctx, cfg.CalibrationFile, rt.Dash.SetOffsets)
		if err != nil {
			// not fatal: offsets just won't follow hand edits
			log.Printf("calibration: watch: %v", err)
		}
		return nil
	})

	if web && cfg.WebServerPort > 0 {
		srv := NewServer(rt.Dash, rt.Maps, cfg.WebRoot)
		addr := ":" + strconv.Itoa(cfg.WebServerPort)
		g.Go(func() error { return RunWeb(ctx, addr, srv.Routes()) })
	}

	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDashboard)
		if err != nil {
			log.Printf("telemetry: %v; continuing without MQTT", err)
		} else {
			g.Go(func() error {
				defer client.Disconnect(250)
				return RunTelemetry(ctx, client, rt.Dash, cfg.TopicState, cfg.TopicGPS)
			})
		}
	}

	if cfg.DisplayEnabled {
		if rt.bus == nil {
			log.Printf("display: no I2C bus; OLED disabled")
		} else {
			interval := time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond
			g.Go(func() error {
				if err := RunDisplay(ctx, rt.bus, cfg.DisplayI2CAddr, interval, rt.Dash); err != nil {
					log.Printf("display: %v", err)
				}
				return nil
			})
		}
	}

	for _, fn := range extra {
		g.Go(func() error { return fn(ctx) })
	}
	return g.Wait()
}

// Close waits for a running update, writes pending settings and releases
// the hardware.
func (rt *Runtime) Close() {
	if rt.Updater != nil {
		rt.Updater.Wait()
	}
	if rt.Saver != nil {
		if err := rt.Saver.Flush(); err != nil {
			log.Printf("settings: %v", err)
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			log.Printf("dashboard: close: %v", err)
		}
	}
}
