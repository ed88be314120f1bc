package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != Default {
		t.Fatalf("got %+v want %+v", s, Default)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")
	want := Settings{View: "map", OverlayVisible: false}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "map\nfalse\n" {
		t.Fatalf("file = %q", raw)
	}
	got, err := Load(path)
	if err != nil || got != want {
		t.Fatalf("Load = %+v, %v want %+v", got, err, want)
	}
}

func TestLoadTolerantOfGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")
	if err := os.WriteFile(path, []byte("accel\r\nmaybe\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.View != "accel" || got.OverlayVisible != Default.OverlayVisible {
		t.Fatalf("got %+v", got)
	}

	if err := os.WriteFile(path, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := Load(path); got.View != Default.View {
		t.Fatalf("empty view should fall back to default, got %+v", got)
	}
}

func TestSaverCoalesces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")
	sv := NewSaver(path, 50*time.Millisecond)

	sv.Schedule(Settings{View: "clock", OverlayVisible: true})
	sv.Schedule(Settings{View: "accel", OverlayVisible: true})
	sv.Schedule(Settings{View: "map", OverlayVisible: false})

	if _, err := os.Stat(path); err == nil {
		t.Fatalf("settings written before quiet period elapsed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := Load(path)
		if err == nil && got.View == "map" {
			if got.OverlayVisible {
				t.Fatalf("overlay flag not saved: %+v", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("debounced save never happened, last %+v", got)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSaverFlushWithoutScheduleWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")
	sv := NewSaver(path, time.Hour)
	if err := sv.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("empty saver wrote a file")
	}

	sv.Schedule(Settings{View: "light", OverlayVisible: true})
	if err := sv.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got, err := Load(path)
	if err != nil || got.View != "light" {
		t.Fatalf("Load = %+v, %v", got, err)
	}
}
