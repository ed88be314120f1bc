// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration stores and measures accelerometer zero offsets.
package calibration

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"

	"github.com/JojoErer/dashboard-peugeot-106/internal/sensors"
)

// Defaults used by the "extra" button in the acceleration view.
const (
	DefaultSamples  = 100
	DefaultInterval = 10 * time.Millisecond
)

// Offsets are subtracted from raw accelerometer readings.
type Offsets struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Apply returns a corrected sample.
func (o Offsets) Apply(a sensors.Accel) sensors.Accel {
	return sensors.Accel{X: a.X - o.X, Y: a.Y - o.Y, Z: a.Z - o.Z}
}

// Load reads three newline-separated floats (X, Y, Z).
func Load(path string) (Offsets, error) {
	f, err := os.Open(path)
	if err != nil {
		return Offsets{}, fmt.Errorf("open calibration file: %w", err)
	}
	defer f.Close()

	var vals []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return Offsets{}, fmt.Errorf("calibration line %d: %w", len(vals)+1, err)
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return Offsets{}, fmt.Errorf("read calibration file: %w", err)
	}
	if len(vals) != 3 {
		return Offsets{}, fmt.Errorf("calibration file %s: want 3 values, got %d", path, len(vals))
	}
	return Offsets{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// Save writes the offsets atomically.
func Save(path string, o Offsets) error {
	data := fmt.Sprintf("%s\n%s\n%s\n",
		strconv.FormatFloat(o.X, 'f', -1, 64),
		strconv.FormatFloat(o.Y, 'f', -1, 64),
		strconv.FormatFloat(o.Z, 'f', -1, 64))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write calibration file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace calibration file: %w", err)
	}
	return nil
}

// Measure averages samples readings taken interval apart. Any read error
// aborts the measurement.
func Measure(ctx context.Context, src sensors.Source[sensors.Accel], samples int, interval time.Duration, clk clock.Clock) (Offsets, error) {
	if samples <= 0 {
		return Offsets{}, errors.New("calibration: samples must be positive")
	}
	if clk == nil {
		clk = clock.New()
	}
	var sum Offsets
	for i := 0; i < samples; i++ {
		if err := ctx.Err(); err != nil {
			return Offsets{}, err
		}
		a, err := src.Read()
		if err != nil {
			return Offsets{}, fmt.Errorf("calibration sample %d: %w", i, err)
		}
		sum.X += a.X
		sum.Y += a.Y
		sum.Z += a.Z
		if interval > 0 {
			clk.Sleep(interval)
		}
	}
	n := float64(samples)
	return Offsets{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}, nil
}

// Watch calls fn with freshly loaded offsets whenever path is written or
// replaced, until ctx is done. The parent directory is watched so atomic
// renames are seen.
func Watch(ctx context.Context, path string, fn func(Offsets)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("calibration watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			o, err := Load(path)
			if err != nil {
				log.Printf("calibration: reload failed: %v", err)
				continue
			}
			log.Printf("calibration: reloaded offsets x=%.3f y=%.3f z=%.3f", o.X, o.Y, o.Z)
			fn(o)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("calibration: watcher error: %v", err)
		}
	}
}
