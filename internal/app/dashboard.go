// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/JojoErer/dashboard-peugeot-106/internal/calibration"
	"github.com/JojoErer/dashboard-peugeot-106/internal/gps"
	"github.com/JojoErer/dashboard-peugeot-106/internal/orientation"
	"github.com/JojoErer/dashboard-peugeot-106/internal/sensors"
	"github.com/JojoErer/dashboard-peugeot-106/internal/settings"
	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
	"github.com/JojoErer/dashboard-peugeot-106/internal/views"
)

// calibrationResetAfter is how long "done"/"failed" stays on screen.
const calibrationResetAfter = 2 * time.Second

// Sources are the inputs polled on every tick. Nil sources are skipped.
type Sources struct {
	Accel      sensors.Source[sensors.Accel]
	EnvInside  sensors.Source[sensors.Env]
	EnvOutside sensors.Source[sensors.Env]
	Light      sensors.Source[sensors.Light]
	RPM        sensors.Source[int]
	CPUTemp    sensors.Source[float64]

	GPS          gps.Feed
	GPSConnected bool // false when GPS is the simulated feed

	Buttons *sensors.Buttons
}

// Options tune a Dashboard. The zero value is usable for tests.
type Options struct {
	Clock clock.Clock
	// Location is the zone GPS times are shown in.
	Location        *time.Location
	StrictChecksum  bool
	StaleAfter      time.Duration
	MaxLinesPerTick int

	Layout   views.Layout
	Settings settings.Settings
	Saver    *settings.Saver

	CalibrationFile     string
	CalibrationSamples  int
	CalibrationInterval time.Duration
	Offsets             calibration.Offsets

	// Smoothing is the low-pass weight applied to acceleration.
	Smoothing float64

	InitStatus string
	Version    func() string
}

// UpdateRunner is the self-updater as seen by the dashboard.
type UpdateRunner interface {
	HandleUpdateRequest() bool
	InProgress() bool
}

// Dashboard is the backend behind every screen: it polls the sources, keeps
// the GPS cache and publishes everything through a state.Store.
type Dashboard struct {
	src   Sources
	opts  Options
	clock clock.Clock

	store   *state.Store
	menu    *views.Menu
	cache   *gps.Cache
	decoder gps.Decoder
	filter  orientation.LowPass

	// lastFix is the cache snapshot of the latest tick, for other goroutines
	fixMu   sync.RWMutex
	lastFix gps.Fix

	offMu   sync.RWMutex
	offsets calibration.Offsets

	calMu        sync.Mutex
	calRequested bool
	calFinished  time.Time

	updMu   sync.RWMutex
	updater UpdateRunner
}

// NewDashboard wires a dashboard. It does not start polling; call Run or Tick.
func NewDashboard(src Sources, opts Options) *Dashboard {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Second
	}
	if opts.MaxLinesPerTick <= 0 {
		opts.MaxLinesPerTick = 50
	}
	if opts.CalibrationSamples <= 0 {
		opts.CalibrationSamples = calibration.DefaultSamples
	}
	if len(opts.Layout.Views) == 0 {
		opts.Layout = views.DefaultLayout()
	}
	if opts.Settings.View == "" {
		opts.Settings = settings.Default
	}

	d := &Dashboard{
		src:     src,
		opts:    opts,
		clock:   opts.Clock,
		menu:    views.NewMenu(opts.Layout, opts.Settings.View, opts.Settings.OverlayVisible),
		cache:   gps.NewCache(opts.Clock),
		decoder: gps.Decoder{Location: opts.Location, Strict: opts.StrictChecksum, Now: opts.Clock.Now},
		filter:  orientation.LowPass{Alpha: opts.Smoothing},
		offsets: opts.Offsets,
	}

	initial := state.Initial()
	initial.CurrentView = d.menu.Current()
	initial.OverlayVisible = d.menu.Overlay()
	initial.GPSConnected = src.GPSConnected
	initial.InitStatus = opts.InitStatus
	if opts.Version != nil {
		initial.Version = opts.Version()
	}
	d.store = state.NewStore(initial)
	return d
}

// Store exposes the observable state.
func (d *Dashboard) Store() *state.Store { return d.store }

// Menu exposes the view cycle.
func (d *Dashboard) Menu() *views.Menu { return d.menu }

// Now returns the current time in the display zone.
func (d *Dashboard) Now() time.Time { return d.clock.Now().In(d.opts.Location) }

// GPSFix returns the fix as of the latest tick.
func (d *Dashboard) GPSFix() gps.Fix {
	d.fixMu.RLock()
	defer d.fixMu.RUnlock()
	return d.lastFix
}

// AttachUpdater connects the self-updater. Its status callback should be
// UpdateStatus.
func (d *Dashboard) AttachUpdater(u UpdateRunner) {
	d.updMu.Lock()
	d.updater = u
	d.updMu.Unlock()
}

// SetOffsets replaces the accelerometer calibration, e.g. from calibration.Watch.
func (d *Dashboard) SetOffsets(o calibration.Offsets) {
	d.offMu.Lock()
	d.offsets = o
	d.offMu.Unlock()
}

// Offsets returns the calibration in use.
func (d *Dashboard) Offsets() calibration.Offsets {
	d.offMu.RLock()
	defer d.offMu.RUnlock()
	return d.offsets
}

// Run polls every interval until ctx is done.
func (d *Dashboard) Run(ctx context.Context, interval time.Duration) error {
	ticker := d.clock.Ticker(interval)
	defer ticker.Stop()

	log.Printf("dashboard: polling every %s", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			d.Tick(now)
		}
	}
}

type reading struct {
	errs []string
}

func (r *reading) fail(name string, err error) {
	r.errs = append(r.errs, fmt.Sprintf("%s: %v", name, err))
}

// Tick runs one polling cycle: read every source, fold in queued GPS lines,
// handle buttons and advance the calibration state machine.
func (d *Dashboard) Tick(now time.Time) {
	var rd reading
	var apply []func(*state.Dashboard)
	set := func(fn func(*state.Dashboard)) { apply = append(apply, fn) }

	d.readEnv(&rd, set)
	d.readLight(&rd, set)
	d.readGPS(now, set)
	d.readAccel(&rd, set)
	d.readScalars(&rd, set)

	d.store.Update(func(s *state.Dashboard) {
		for _, fn := range apply {
			fn(s)
		}
		s.SensorStatus = strings.Join(rd.errs, "\n")
		s.UpdateInProgress = d.updateInProgress()
	})

	d.pollButtons()
	d.stepCalibration(now)
}

func (d *Dashboard) readEnv(rd *reading, set func(func(*state.Dashboard))) {
	if d.src.EnvInside != nil {
		if e, err := d.src.EnvInside.Read(); err != nil {
			rd.fail("inside climate", err)
		} else {
			set(func(s *state.Dashboard) { s.TempInside, s.HumidityInside = e.Temperature, e.Humidity })
		}
	}
	if d.src.EnvOutside != nil {
		if e, err := d.src.EnvOutside.Read(); err != nil {
			rd.fail("outside climate", err)
		} else {
			set(func(s *state.Dashboard) { s.TempOutside, s.HumidityOutside = e.Temperature, e.Humidity })
		}
	}
}

func (d *Dashboard) readLight(rd *reading, set func(func(*state.Dashboard))) {
	if d.src.Light == nil {
		return
	}
	l, err := d.src.Light.Read()
	if err != nil {
		rd.fail("light", err)
		return
	}
	set(func(s *state.Dashboard) {
		s.Light1, s.Light2 = l.Sensor1, l.Sensor2
		s.IsDaytime = l.Daytime()
	})
}

// readGPS is the only place the cache is written.
func (d *Dashboard) readGPS(now time.Time, set func(func(*state.Dashboard))) {
	if d.src.GPS != nil {
		for _, line := range gps.Drain(d.src.GPS.Lines(), d.opts.MaxLinesPerTick) {
			d.cache.Update(d.decoder.Decode(line))
		}
	}
	fix := d.cache.Snapshot()
	d.fixMu.Lock()
	d.lastFix = fix
	d.fixMu.Unlock()
	set(func(s *state.Dashboard) {
		if fix.HasPosition() {
			s.CenterLat, s.CenterLon = *fix.Latitude, *fix.Longitude
			s.HasPosition = true
		}
		s.Velocity = fix.SpeedKMH
		if fix.Timestamp != nil {
			s.GPSTime = *fix.Timestamp
		}
		s.FixStatus = fix.FixStatus
		s.Satellites = fix.Satellites
		s.GPSStale = fix.Stale(now, d.opts.StaleAfter)
	})
}

func (d *Dashboard) readAccel(rd *reading, set func(func(*state.Dashboard))) {
	if d.src.Accel == nil {
		return
	}
	a, err := d.src.Accel.Read()
	if err != nil {
		rd.fail("accelerometer", err)
		return
	}
	raw := a
	a = d.Offsets().Apply(a)
	x, y, _ := d.filter.Filter(a.X, a.Y, a.Z)
	// tilt needs gravity, so it comes from the uncalibrated vector
	pose := orientation.ComputePoseFromAccel(raw.X, raw.Y, raw.Z)
	set(func(s *state.Dashboard) {
		s.AX, s.AY = x, y
		s.Roll, s.Pitch = pose.Roll, pose.Pitch
	})
}

func (d *Dashboard) readScalars(rd *reading, set func(func(*state.Dashboard))) {
	if d.src.CPUTemp != nil {
		if t, err := d.src.CPUTemp.Read(); err != nil {
			rd.fail("cpu temperature", err)
		} else {
			set(func(s *state.Dashboard) { s.PiTemperature = t })
		}
	}
	if d.src.RPM != nil {
		if rpm, err := d.src.RPM.Read(); err != nil {
			rd.fail("rpm", err)
		} else {
			set(func(s *state.Dashboard) { s.RPM = rpm })
		}
	}
}

func (d *Dashboard) pollButtons() {
	b := d.src.Buttons
	if b == nil {
		return
	}
	if ok, err := b.Pressed(sensors.ButtonNext); err == nil && ok {
		log.Printf("dashboard: next view requested")
		d.NextView()
	}
	if ok, err := b.Pressed(sensors.ButtonExtra); err == nil && ok {
		if d.menu.Current() == views.Accel {
			d.Calibrate()
		} else {
			log.Printf("dashboard: next overlay requested")
			d.NextOverlay()
		}
	}
}

// NextView advances the menu and persists the choice.
func (d *Dashboard) NextView() string {
	v := d.menu.Next()
	d.store.Update(func(s *state.Dashboard) { s.CurrentView = v })
	d.saveSettings()
	return v
}

// SelectView jumps to a named view.
func (d *Dashboard) SelectView(name string) error {
	if err := d.menu.Select(name); err != nil {
		return err
	}
	d.store.Update(func(s *state.Dashboard) { s.CurrentView = name })
	d.saveSettings()
	return nil
}

// NextOverlay toggles the info overlay and persists the choice.
func (d *Dashboard) NextOverlay() bool {
	v := d.menu.ToggleOverlay()
	d.store.Update(func(s *state.Dashboard) { s.OverlayVisible = v })
	d.saveSettings()
	return v
}

func (d *Dashboard) saveSettings() {
	if d.opts.Saver == nil {
		return
	}
	d.opts.Saver.Schedule(settings.Settings{View: d.menu.Current(), OverlayVisible: d.menu.Overlay()})
}

// PressButton injects a button press, handled on the next tick.
func (d *Dashboard) PressButton(name string) error {
	if d.src.Buttons == nil {
		return errors.New("no buttons configured")
	}
	return d.src.Buttons.Press(name)
}

// RequestUpdate asks the self-updater to pull. It reports whether a pull
// was started; the outcome arrives through UpdateStatus.
func (d *Dashboard) RequestUpdate() bool {
	d.updMu.RLock()
	u := d.updater
	d.updMu.RUnlock()
	if u == nil {
		d.UpdateStatus("Updater not configured")
		return false
	}
	started := u.HandleUpdateRequest()
	d.store.Update(func(s *state.Dashboard) { s.UpdateInProgress = u.InProgress() })
	return started
}

// UpdateStatus receives updater messages. Safe to call from any goroutine.
func (d *Dashboard) UpdateStatus(msg string) {
	d.store.Update(func(s *state.Dashboard) {
		s.UpdateStatus = msg
		s.UpdateInProgress = d.updateInProgress()
		if d.opts.Version != nil {
			s.Version = d.opts.Version()
		}
	})
}

func (d *Dashboard) updateInProgress() bool {
	d.updMu.RLock()
	defer d.updMu.RUnlock()
	return d.updater != nil && d.updater.InProgress()
}

// Calibrate requests an accelerometer calibration on the next tick. It
// returns false while one is already running.
func (d *Dashboard) Calibrate() bool {
	d.calMu.Lock()
	defer d.calMu.Unlock()
	if d.calRequested {
		log.Printf("dashboard: calibration already in progress")
		return false
	}
	log.Printf("dashboard: calibrating accelerometer")
	d.calRequested = true
	d.calFinished = time.Time{}
	d.store.Update(func(s *state.Dashboard) { s.CalibrationState = state.CalibrationCalibrating })
	return true
}

// stepCalibration runs a requested measurement, then returns the state to
// idle once the result has been visible for calibrationResetAfter.
func (d *Dashboard) stepCalibration(now time.Time) {
	d.calMu.Lock()
	requested := d.calRequested
	finished := d.calFinished
	d.calMu.Unlock()

	if requested {
		result := d.measure()
		d.calMu.Lock()
		d.calRequested = false
		d.calFinished = now
		d.calMu.Unlock()
		d.store.Update(func(s *state.Dashboard) { s.CalibrationState = result })
		return
	}
	if !finished.IsZero() && now.Sub(finished) >= calibrationResetAfter {
		d.calMu.Lock()
		d.calFinished = time.Time{}
		d.calMu.Unlock()
		d.store.Update(func(s *state.Dashboard) { s.CalibrationState = state.CalibrationIdle })
	}
}

func (d *Dashboard) measure() string {
	if d.src.Accel == nil {
		log.Printf("dashboard: calibration failed: no accelerometer")
		return state.CalibrationFailed
	}
	o, err := calibration.Measure(context.Background(), d.src.Accel, d.opts.CalibrationSamples, d.opts.CalibrationInterval, d.clock)
	if err != nil {
		log.Printf("dashboard: calibration failed: %v", err)
		return state.CalibrationFailed
	}
	d.SetOffsets(o)
	d.filter.Reset()
	if d.opts.CalibrationFile != "" {
		if err := calibration.Save(d.opts.CalibrationFile, o); err != nil {
			log.Printf("dashboard: %v", err)
			return state.CalibrationFailed
		}
	}
	log.Printf("dashboard: calibration complete x=%.3f y=%.3f z=%.3f", o.X, o.Y, o.Z)
	return state.CalibrationDone
}
