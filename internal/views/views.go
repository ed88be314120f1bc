// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package views holds the dashboard's view menu: which screens exist, which
// one is showing and whether the info overlay is visible.
package views

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Built-in views
const (
	Clock = "clock"
	Accel = "accel"
	Map   = "map"
	Light = "light"
)

// Layout is the optional views.yaml file.
type Layout struct {
	Views          []string `yaml:"views"`
	Default        string   `yaml:"default"`
	OverlayVisible *bool    `yaml:"overlay_visible"`
}

// DefaultLayout cycles through all built-in views.
func DefaultLayout() Layout {
	return Layout{Views: []string{Clock, Accel, Map, Light}, Default: Clock}
}

var known = []string{Clock, Accel, Map, Light}

// LoadLayout reads a YAML layout. A missing file yields DefaultLayout.
func LoadLayout(path string) (Layout, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultLayout(), nil
	}
	if err != nil {
		return Layout{}, fmt.Errorf("read views file: %w", err)
	}
	var l Layout
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return Layout{}, fmt.Errorf("parse views file: %w", err)
	}
	if err := l.validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

func (l *Layout) validate() error {
	if len(l.Views) == 0 {
		l.Views = DefaultLayout().Views
	}
	seen := map[string]bool{}
	for _, v := range l.Views {
		if !slices.Contains(known, v) {
			return fmt.Errorf("views: unknown view %q", v)
		}
		if seen[v] {
			return fmt.Errorf("views: duplicate view %q", v)
		}
		seen[v] = true
	}
	if l.Default == "" {
		l.Default = l.Views[0]
	}
	if !seen[l.Default] {
		return fmt.Errorf("views: default %q is not in the view list", l.Default)
	}
	return nil
}

// Menu is the current position in the view cycle. Safe for concurrent use.
type Menu struct {
	mu      sync.RWMutex
	views   []string
	current int
	overlay bool
}

// NewMenu starts at start (falling back to the layout default when start is
// not part of the cycle) with the given overlay visibility.
func NewMenu(l Layout, start string, overlay bool) *Menu {
	if err := l.validate(); err != nil {
		l = DefaultLayout()
	}
	m := &Menu{views: slices.Clone(l.Views), overlay: overlay}
	idx := slices.Index(m.views, start)
	if idx < 0 {
		idx = slices.Index(m.views, l.Default)
	}
	m.current = max(idx, 0)
	return m
}

// Current returns the showing view.
func (m *Menu) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.views[m.current]
}

// Views returns the cycle order.
func (m *Menu) Views() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.views)
}

// Next advances to the following view, wrapping around.
func (m *Menu) Next() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = (m.current + 1) % len(m.views)
	return m.views[m.current]
}

// Select jumps to a view by name.
func (m *Menu) Select(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := slices.Index(m.views, name)
	if idx < 0 {
		return fmt.Errorf("views: %q is not in the menu", name)
	}
	m.current = idx
	return nil
}

// Overlay reports whether the info overlay is visible.
func (m *Menu) Overlay() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlay
}

// ToggleOverlay flips the overlay and returns the new visibility.
func (m *Menu) ToggleOverlay() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = !m.overlay
	return m.overlay
}
