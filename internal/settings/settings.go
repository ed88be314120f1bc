// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package settings persists the user's last view and overlay choice.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// Settings is the persisted UI state.
type Settings struct {
	View           string `json:"view"`
	OverlayVisible bool   `json:"overlay_visible"`
}

// Default is used when no (valid) settings file exists.
var Default = Settings{View: "clock", OverlayVisible: true}

// Load reads the two-line settings file: view name, then "true"/"false".
// A missing file yields Default without error; a garbled second line keeps
// the default overlay value.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default, nil
	}
	if err != nil {
		return Default, fmt.Errorf("read settings: %w", err)
	}

	s := Default
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	if len(lines) > 0 {
		if v := strings.TrimSpace(lines[0]); v != "" {
			s.View = v
		}
	}
	if len(lines) > 1 {
		switch strings.ToLower(strings.TrimSpace(lines[1])) {
		case "true":
			s.OverlayVisible = true
		case "false":
			s.OverlayVisible = false
		}
	}
	return s, nil
}

// Save writes the settings file atomically.
func Save(path string, s Settings) error {
	data := fmt.Sprintf("%s\n%t\n", s.View, s.OverlayVisible)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Saver coalesces bursts of changes (e.g. cycling through views with the
// button) into a single write after the burst settles.
type Saver struct {
	path     string
	debounce func(func())

	mu      sync.Mutex
	pending Settings
	dirty   bool
}

// NewSaver writes to path at most once per quiet period of delay.
func NewSaver(path string, delay time.Duration) *Saver {
	return &Saver{path: path, debounce: debounce.New(delay)}
}

// Schedule records s and (re)starts the quiet-period timer.
func (sv *Saver) Schedule(s Settings) {
	sv.mu.Lock()
	sv.pending = s
	sv.dirty = true
	sv.mu.Unlock()
	sv.debounce(sv.flush)
}

// Flush writes the latest scheduled settings immediately. Nothing is
// written when nothing was scheduled since the last write.
func (sv *Saver) Flush() error {
	sv.mu.Lock()
	s, dirty := sv.pending, sv.dirty
	sv.dirty = false
	sv.mu.Unlock()
	if !dirty {
		return nil
	}
	return Save(sv.path, s)
}

func (sv *Saver) flush() {
	if err := sv.Flush(); err != nil {
		log.Printf("settings: %v", err)
	}
}
