// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package state holds the dashboard's observable display state. Every change
// goes through Store.Update, which works out which fields changed and tells
// subscribers (web clients, the OLED, MQTT) about them.
package state

import (
	"reflect"
	"strings"
	"sync"
)

// Calibration states shown in the acceleration view.
const (
	CalibrationIdle        = "idle"
	CalibrationCalibrating = "calibrating"
	CalibrationDone        = "done"
	CalibrationFailed      = "failed"
)

// Dashboard is everything the screens render.
type Dashboard struct {
	Velocity     float64 `json:"velocity"`
	GPSTime      string  `json:"gpsTime"`
	CenterLat    float64 `json:"centerLat"`
	CenterLon    float64 `json:"centerLon"`
	HasPosition  bool    `json:"hasPosition"`
	FixStatus    int     `json:"fixStatus"`
	Satellites   int     `json:"satellites"`
	GPSStale     bool    `json:"gpsStale"`
	GPSConnected bool    `json:"gpsConnected"`

	TempInside      float64 `json:"tempInside"`
	TempOutside     float64 `json:"tempOutside"`
	HumidityInside  float64 `json:"humidityInside"`
	HumidityOutside float64 `json:"humidityOutside"`
	PiTemperature   float64 `json:"piTemperature"`

	AX    float64 `json:"ax"`
	AY    float64 `json:"ay"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	RPM   int     `json:"rpm"`

	Light1    int    `json:"light1"`
	Light2    int    `json:"light2"`
	IsDaytime bool   `json:"isDaytime"`
	DayColor  string `json:"dayColor"`

	CurrentView      string `json:"currentView"`
	OverlayVisible   bool   `json:"overlayVisible"`
	CalibrationState string `json:"calibrationState"`

	UpdateStatus     string `json:"updateStatus"`
	UpdateInProgress bool   `json:"updateInProgress"`
	SensorStatus     string `json:"sensorStatus"`
	InitStatus       string `json:"initStatus"`
	Version          string `json:"version"`
}

// Initial is the state before the first poll.
func Initial() Dashboard {
	d := Dashboard{
		GPSTime:          "00:00",
		CenterLat:        52.1070,
		CenterLon:        5.1214,
		IsDaytime:        true,
		CalibrationState: CalibrationIdle,
	}
	d.derive()
	return d
}

func (d *Dashboard) derive() {
	if d.IsDaytime {
		d.DayColor = "white"
	} else {
		d.DayColor = "yellow"
	}
}

// Change is delivered to subscribers after every Update that changed something.
type Change struct {
	Fields []string  `json:"fields"`
	State  Dashboard `json:"state"`
}

// Store is the single owner of the Dashboard value.
type Store struct {
	mu     sync.Mutex
	state  Dashboard
	subs   map[int]chan Change
	nextID int
}

// NewStore starts from initial.
func NewStore(initial Dashboard) *Store {
	initial.derive()
	return &Store{state: initial, subs: make(map[int]chan Change)}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies fn to a copy of the state, stores it and returns the JSON
// names of the fields that changed. Subscribers are notified only when the
// list is non-empty.
func (s *Store) Update(fn func(*Dashboard)) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	fn(&next)
	next.derive()

	changed := Diff(s.state, next)
	if len(changed) == 0 {
		return nil
	}
	s.state = next

	c := Change{Fields: changed, State: next}
	for _, ch := range s.subs {
		publish(ch, c)
	}
	return changed
}

// publish never blocks: a slow subscriber loses its oldest pending change,
// so it always ends up with the latest state.
func publish(ch chan Change, c Change) {
	for {
		select {
		case ch <- c:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe returns a channel of changes and a function that unsubscribes
// and closes it.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Diff lists the JSON names of the fields that differ between a and b.
func Diff(a, b Dashboard) []string {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	t := va.Type()
	var out []string
	for i := 0; i < t.NumField(); i++ {
		if !va.Field(i).Equal(vb.Field(i)) {
			out = append(out, fieldName(t.Field(i)))
		}
	}
	return out
}

func fieldName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
		return tag
	}
	return f.Name
}
