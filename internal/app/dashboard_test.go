package app

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"

	"github.com/JojoErer/dashboard-peugeot-106/internal/calibration"
	"github.com/JojoErer/dashboard-peugeot-106/internal/gps"
	"github.com/JojoErer/dashboard-peugeot-106/internal/sensors"
	"github.com/JojoErer/dashboard-peugeot-106/internal/settings"
	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
	"github.com/JojoErer/dashboard-peugeot-106/internal/views"
)

type fakeFeed struct{ ch chan string }

func newFakeFeed() *fakeFeed            { return &fakeFeed{ch: make(chan string, 16)} }
func (f *fakeFeed) Lines() <-chan string { return f.ch }
func (f *fakeFeed) Close() error         { return nil }

func constant[T any](v T) sensors.Source[T] {
	return sensors.SourceFunc[T](func() (T, error) { return v, nil })
}

func failing[T any](msg string) sensors.Source[T] {
	return sensors.SourceFunc[T](func() (T, error) {
		var zero T
		return zero, errors.New(msg)
	})
}

func simulatedButtons(clk clock.Clock) *sensors.Buttons {
	return sensors.NewButtons(clk, 300*time.Millisecond, map[string]sensors.Capability[gpio.PinIO]{
		sensors.ButtonNext:  sensors.Simulated[gpio.PinIO]("test"),
		sensors.ButtonExtra: sensors.Simulated[gpio.PinIO]("test"),
	}, &sensors.Report{})
}

type testRig struct {
	clk  *clock.Mock
	feed *fakeFeed
	dash *Dashboard
}

func newRig(t *testing.T, src Sources, opts Options) *testRig {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	feed := newFakeFeed()
	if src.GPS == nil {
		src.GPS = feed
	}
	if src.Buttons == nil {
		src.Buttons = simulatedButtons(clk)
	}
	opts.Clock = clk
	if opts.Location == nil {
		opts.Location = time.FixedZone("CEST", 2*60*60)
	}
	return &testRig{clk: clk, feed: feed, dash: NewDashboard(src, opts)}
}

func (r *testRig) tick() state.Dashboard {
	r.dash.Tick(r.clk.Now())
	return r.dash.Store().Snapshot()
}

func TestTickFoldsSourcesIntoState(t *testing.T) {
	r := newRig(t, Sources{
		Accel:        constant(sensors.Accel{X: 0.25, Y: -0.5, Z: 1}),
		EnvInside:    constant(sensors.Env{Temperature: 21.5, Humidity: 45}),
		EnvOutside:   constant(sensors.Env{Temperature: 12, Humidity: 80}),
		Light:        constant(sensors.Light{Sensor1: 0, Sensor2: 0}),
		RPM:          constant(2500),
		CPUTemp:      constant(48.0),
		GPSConnected: true,
	}, Options{})

	r.feed.ch <- gps.FormatRMC(r.clk.Now(), 52.1, 5.12, 36)
	r.feed.ch <- gps.FormatGGA(r.clk.Now(), 52.1, 5.12, 8, 0.9)
	got := r.tick()

	if got.GPSTime != "12:00" {
		t.Errorf("GPSTime = %q, want local 12:00", got.GPSTime)
	}
	if !got.HasPosition || math.Abs(got.CenterLat-52.1) > 1e-4 || math.Abs(got.CenterLon-5.12) > 1e-4 {
		t.Errorf("position = %v %.5f,%.5f", got.HasPosition, got.CenterLat, got.CenterLon)
	}
	if math.Abs(got.Velocity-36) > 0.2 {
		t.Errorf("Velocity = %.2f", got.Velocity)
	}
	if got.Satellites != 8 || got.FixStatus != 1 || got.GPSStale || !got.GPSConnected {
		t.Errorf("gps flags = sats %d fix %d stale %v connected %v", got.Satellites, got.FixStatus, got.GPSStale, got.GPSConnected)
	}

	for _, c := range []struct {
		name      string
		got, want float64
	}{
		{"TempInside", got.TempInside, 21.5},
		{"HumidityInside", got.HumidityInside, 45},
		{"TempOutside", got.TempOutside, 12},
		{"HumidityOutside", got.HumidityOutside, 80},
		{"PiTemperature", got.PiTemperature, 48},
		{"AX", got.AX, 0.25},
		{"AY", got.AY, -0.5},
		{"RPM", float64(got.RPM), 2500},
	} {
		if c.got != c.want {
			t.Errorf("%s = %v want %v", c.name, c.got, c.want)
		}
	}
	if got.IsDaytime || got.DayColor != "yellow" || got.SensorStatus != "" {
		t.Errorf("daytime=%v color=%q status=%q", got.IsDaytime, got.DayColor, got.SensorStatus)
	}

	if fix := r.dash.GPSFix(); !fix.HasPosition() || fix.Satellites != 8 {
		t.Errorf("GPSFix = %+v", fix)
	}
}

func TestTickCollectsSensorErrors(t *testing.T) {
	r := newRig(t, Sources{
		Accel:     failing[sensors.Accel]("i2c timeout"),
		EnvInside: constant(sensors.Env{Temperature: 20}),
		RPM:       failing[int]("line busy"),
	}, Options{})

	got := r.tick()
	want := "accelerometer: i2c timeout\nrpm: line busy"
	if got.SensorStatus != want {
		t.Fatalf("SensorStatus = %q want %q", got.SensorStatus, want)
	}
	if got.TempInside != 20 {
		t.Fatalf("healthy source not applied: %v", got.TempInside)
	}
}

func TestGPSFixIsStickyAndGoesStale(t *testing.T) {
	r := newRig(t, Sources{}, Options{StaleAfter: 10 * time.Second})

	r.feed.ch <- gps.FormatRMC(r.clk.Now(), 48.1173, 11.5166, 50)
	if got := r.tick(); got.GPSStale || !got.HasPosition {
		t.Fatalf("fresh fix: stale=%v position=%v", got.GPSStale, got.HasPosition)
	}

	r.feed.ch <- "$GPGGA,garbage"
	r.clk.Add(11 * time.Second)
	got := r.tick()
	if !got.GPSStale {
		t.Fatalf("fix not marked stale after 11s of silence")
	}
	if math.Abs(got.CenterLat-48.1173) > 1e-4 {
		t.Fatalf("last good position lost: %.5f", got.CenterLat)
	}
}

func TestNoGPSDataIsStale(t *testing.T) {
	r := newRig(t, Sources{}, Options{})
	got := r.tick()
	if !got.GPSStale || got.HasPosition {
		t.Fatalf("empty cache: stale=%v position=%v", got.GPSStale, got.HasPosition)
	}
	if got.CenterLat != state.Initial().CenterLat {
		t.Fatalf("home position replaced: %v", got.CenterLat)
	}
}

func TestButtonsDriveViewsAndOverlay(t *testing.T) {
	r := newRig(t, Sources{Accel: constant(sensors.Accel{Z: 1})}, Options{})
	if v := r.dash.Store().Snapshot().CurrentView; v != views.Clock {
		t.Fatalf("start view = %q", v)
	}

	if err := r.dash.PressButton(sensors.ButtonExtra); err != nil {
		t.Fatal(err)
	}
	if got := r.tick(); got.OverlayVisible {
		t.Fatalf("extra button outside accel view should hide the overlay")
	}

	r.clk.Add(time.Second)
	r.dash.PressButton(sensors.ButtonNext)
	if got := r.tick(); got.CurrentView != views.Accel {
		t.Fatalf("after next: %q", got.CurrentView)
	}

	// same debounce window: ignored
	r.dash.PressButton(sensors.ButtonNext)
	r.clk.Add(100 * time.Millisecond)
	if got := r.tick(); got.CurrentView != views.Accel {
		t.Fatalf("press inside debounce window was accepted: %q", got.CurrentView)
	}

	r.clk.Add(time.Second)
	r.dash.PressButton(sensors.ButtonExtra)
	if got := r.tick(); got.CalibrationState != state.CalibrationDone {
		t.Fatalf("extra button in accel view: calibration %q", got.CalibrationState)
	}

	if err := r.dash.PressButton("horn"); err == nil {
		t.Fatalf("unknown button accepted")
	}
}

func TestCalibrationLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.txt")
	r := newRig(t, Sources{Accel: constant(sensors.Accel{X: 0.1, Y: -0.2, Z: 1})}, Options{
		CalibrationFile:    path,
		CalibrationSamples: 5,
	})

	if !r.dash.Calibrate() {
		t.Fatalf("first Calibrate rejected")
	}
	if r.dash.Calibrate() {
		t.Fatalf("second Calibrate accepted while one is pending")
	}
	if got := r.dash.Store().Snapshot().CalibrationState; got != state.CalibrationCalibrating {
		t.Fatalf("state = %q", got)
	}

	if got := r.tick(); got.CalibrationState != state.CalibrationDone {
		t.Fatalf("after measuring: %q", got.CalibrationState)
	}
	want := calibration.Offsets{X: 0.1, Y: -0.2, Z: 1}
	opts := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })
	if diff := cmp.Diff(want, r.dash.Offsets(), opts); diff != "" {
		t.Fatalf("offsets (-want +got):\n%s", diff)
	}
	saved, err := calibration.Load(path)
	if err != nil {
		t.Fatalf("calibration not saved: %v", err)
	}
	if diff := cmp.Diff(want, saved, opts); diff != "" {
		t.Fatalf("saved offsets (-want +got):\n%s", diff)
	}

	r.clk.Add(time.Second)
	got := r.tick()
	if got.CalibrationState != state.CalibrationDone {
		t.Fatalf("result cleared too early: %q", got.CalibrationState)
	}
	if math.Abs(got.AX) > 1e-9 || math.Abs(got.AY) > 1e-9 {
		t.Fatalf("offsets not applied: ax=%v ay=%v", got.AX, got.AY)
	}

	r.clk.Add(time.Second)
	if got := r.tick(); got.CalibrationState != state.CalibrationIdle {
		t.Fatalf("state after 2s = %q", got.CalibrationState)
	}
}

func TestCalibrationFailure(t *testing.T) {
	r := newRig(t, Sources{Accel: failing[sensors.Accel]("bus error")}, Options{CalibrationSamples: 3})
	r.dash.Calibrate()
	if got := r.tick(); got.CalibrationState != state.CalibrationFailed {
		t.Fatalf("state = %q", got.CalibrationState)
	}
	if r.dash.Offsets() != (calibration.Offsets{}) {
		t.Fatalf("failed calibration changed offsets: %+v", r.dash.Offsets())
	}
	r.clk.Add(2 * time.Second)
	if got := r.tick(); got.CalibrationState != state.CalibrationIdle {
		t.Fatalf("state = %q", got.CalibrationState)
	}
}

type fakeUpdater struct {
	accept     bool
	inProgress bool
	requests   int
}

func (f *fakeUpdater) HandleUpdateRequest() bool { f.requests++; return f.accept }
func (f *fakeUpdater) InProgress() bool          { return f.inProgress }

func TestRequestUpdate(t *testing.T) {
	version := "1.0.0"
	r := newRig(t, Sources{}, Options{Version: func() string { return version }})

	if r.dash.RequestUpdate() {
		t.Fatalf("update started without an updater")
	}
	if got := r.dash.Store().Snapshot().UpdateStatus; got != "Updater not configured" {
		t.Fatalf("UpdateStatus = %q", got)
	}

	u := &fakeUpdater{accept: true, inProgress: true}
	r.dash.AttachUpdater(u)
	if !r.dash.RequestUpdate() {
		t.Fatalf("accepted request reported as rejected")
	}
	if !r.dash.Store().Snapshot().UpdateInProgress {
		t.Fatalf("UpdateInProgress not set")
	}

	u.inProgress = false
	version = "1.1.0"
	r.dash.UpdateStatus("Update successful")
	got := r.dash.Store().Snapshot()
	if got.UpdateInProgress || got.Version != "1.1.0" || !strings.HasPrefix(got.UpdateStatus, "Update successful") {
		t.Fatalf("after update: inProgress=%v version=%q status=%q", got.UpdateInProgress, got.Version, got.UpdateStatus)
	}
}

func TestViewChangesArePersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")
	saver := settings.NewSaver(path, time.Hour)
	r := newRig(t, Sources{}, Options{
		Settings: settings.Settings{View: views.Map, OverlayVisible: false},
		Saver:    saver,
	})
	if got := r.dash.Store().Snapshot(); got.CurrentView != views.Map || got.OverlayVisible {
		t.Fatalf("saved settings not restored: %q overlay=%v", got.CurrentView, got.OverlayVisible)
	}

	r.dash.NextView()
	r.dash.NextOverlay()
	if err := saver.Flush(); err != nil {
		t.Fatal(err)
	}
	got, err := settings.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(settings.Settings{View: views.Light, OverlayVisible: true}, got); diff != "" {
		t.Fatalf("persisted settings (-want +got):\n%s", diff)
	}

	if err := r.dash.SelectView("radar"); err == nil {
		t.Fatalf("unknown view accepted")
	}
}
