package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
	"github.com/JojoErer/dashboard-peugeot-106/internal/views"
)

type fakeController struct {
	calls []string
}

func (f *fakeController) NextView() string    { f.calls = append(f.calls, "next"); return views.Map }
func (f *fakeController) NextOverlay() bool   { f.calls = append(f.calls, "overlay"); return false }
func (f *fakeController) RequestUpdate() bool { f.calls = append(f.calls, "update"); return true }
func (f *fakeController) Calibrate() bool     { f.calls = append(f.calls, "calibrate"); return false }
func (f *fakeController) PressButton(name string) error {
	f.calls = append(f.calls, "press "+name)
	if name == "extra" {
		return errors.New("unknown button")
	}
	return nil
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestKeysDriveController(t *testing.T) {
	ctrl := &fakeController{}
	var m tea.Model = New(ctrl, state.Initial(), nil)

	for _, r := range "noucx12" {
		m, _ = m.Update(keyPress(r))
	}
	want := []string{"next", "overlay", "update", "calibrate", "press next", "press extra"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v want %v", ctrl.calls, want)
	}
	if got := m.(Model).status; got != "unknown button" {
		t.Fatalf("status after failed press = %q", got)
	}
}

func TestQuitKey(t *testing.T) {
	m := New(&fakeController{}, state.Initial(), nil)
	_, cmd := m.Update(keyPress('q'))
	if cmd == nil {
		t.Fatalf("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q did not quit")
	}
}

func TestChangesFollowStore(t *testing.T) {
	store := state.NewStore(state.Initial())
	ch, cancel := store.Subscribe(4)
	m := New(&fakeController{}, store.Snapshot(), ch)

	store.Update(func(d *state.Dashboard) {
		d.CurrentView = views.Map
		d.HasPosition = true
		d.CenterLat, d.CenterLon = 48.1173, 11.5166
		d.GPSConnected = true
	})
	msg := m.Init()()
	next, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatalf("model stopped listening after a change")
	}
	view := next.(Model).View()
	if !strings.Contains(view, "48.11730, 11.51660") {
		t.Fatalf("map view missing position:\n%s", view)
	}

	cancel()
	if _, ok := cmd().(closedMsg); !ok {
		t.Fatalf("closed channel not reported")
	}
}

func TestViewsRender(t *testing.T) {
	for _, v := range []string{views.Clock, views.Accel, views.Map, views.Light} {
		s := state.Initial()
		s.CurrentView = v
		s.OverlayVisible = true
		s.TempInside = 21.5
		out := New(&fakeController{}, s, nil).View()
		if !strings.Contains(out, "km/h") || !strings.Contains(out, "21.5°C") {
			t.Errorf("%s view:\n%s", v, out)
		}
	}
}

func TestGBall(t *testing.T) {
	lines := strings.Split(gBall(1, 0, 2), "\n")
	if len(lines) != 5 {
		t.Fatalf("rows = %d", len(lines))
	}
	if got := []rune(lines[2]); got[4] != '●' {
		t.Fatalf("ball not at right edge: %q", lines[2])
	}
	lines = strings.Split(gBall(0, 5, 2), "\n")
	if got := []rune(lines[0]); got[2] != '●' {
		t.Fatalf("ball not clamped to top: %q", lines[0])
	}
}
