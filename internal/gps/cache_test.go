package gps

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
)

func TestCacheStickyMerge(t *testing.T) {
	clk := clock.NewMock()
	c := NewCache(clk)

	c.Update(Update{Latitude: ptr(52.1), Longitude: ptr(5.1)})
	clk.Add(time.Second)
	c.Update(Update{SpeedKMH: ptr(10.0)})

	want := Fix{
		Latitude:  ptr(52.1),
		Longitude: ptr(5.1),
		SpeedKMH:  10,
		UpdatedAt: clk.Now(),
	}
	if diff := cmp.Diff(want, c.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheIgnoresEmptyUpdate(t *testing.T) {
	clk := clock.NewMock()
	c := NewCache(clk)
	c.Update(Update{Latitude: ptr(1.0), Longitude: ptr(2.0)})
	stamped := c.Snapshot().UpdatedAt

	clk.Add(time.Minute)
	if c.Update(Update{}) {
		t.Fatalf("empty update reported as applied")
	}
	snap := c.Snapshot()
	if !snap.UpdatedAt.Equal(stamped) {
		t.Fatalf("empty update moved UpdatedAt")
	}
	if !snap.HasPosition() {
		t.Fatalf("position lost after empty update")
	}
}

func TestCacheSnapshotIsACopy(t *testing.T) {
	c := NewCache(clock.NewMock())
	c.Update(Update{Latitude: ptr(1.0), Longitude: ptr(2.0), Timestamp: ptr("10:00")})

	snap := c.Snapshot()
	*snap.Latitude = 99
	*snap.Timestamp = "xx"

	again := c.Snapshot()
	if *again.Latitude != 1 || *again.Timestamp != "10:00" {
		t.Fatalf("snapshot aliases cache state: %+v", again)
	}
}

func TestCacheKeepsLastGoodFixAcrossGarbage(t *testing.T) {
	c := NewCache(clock.NewMock())
	d := &Decoder{}

	c.Update(d.Decode("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"))
	c.Update(d.Decode("$GPGGA,123520,,,,,0,00,,,M,,M,,"))
	c.Update(d.Decode("noise"))

	snap := c.Snapshot()
	if !snap.HasPosition() {
		t.Fatalf("position lost")
	}
	if snap.FixStatus != 0 || snap.Satellites != 0 {
		t.Fatalf("GGA quality fields should still apply: %+v", snap)
	}
}

func TestFixStale(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var f Fix
	if !f.Stale(now, time.Minute) {
		t.Fatalf("never-updated fix should be stale")
	}
	f.UpdatedAt = now.Add(-30 * time.Second)
	if f.Stale(now, time.Minute) {
		t.Fatalf("fresh fix reported stale")
	}
	if !f.Stale(now, 10*time.Second) {
		t.Fatalf("old fix not reported stale")
	}
}

func TestReaderFeedSkipsNoise(t *testing.T) {
	in := "garbage\r\n$GPGGA,1,2,3\r\n\r\n$GPRMC,4,5,6\r\n"
	f := NewReaderFeed(io.NopCloser(strings.NewReader(in)))
	defer f.Close()

	var got []string
	for l := range f.Lines() {
		got = append(got, l)
	}
	want := []string{"$GPGGA,1,2,3", "$GPRMC,4,5,6"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestDrainIsNonBlocking(t *testing.T) {
	ch := make(chan string, 4)
	ch <- "a"
	ch <- "b"
	ch <- "c"

	if got := Drain(ch, 2); len(got) != 2 {
		t.Fatalf("Drain max=2 returned %d lines", len(got))
	}
	if got := Drain(ch, 10); len(got) != 1 || got[0] != "c" {
		t.Fatalf("Drain rest = %v", got)
	}
	if got := Drain(ch, 10); len(got) != 0 {
		t.Fatalf("Drain on empty = %v", got)
	}
}

func TestSimulatedFeedEmitsDecodableFixes(t *testing.T) {
	clk := clock.NewMock()
	f := NewSimulatedFeed(Home.Lat, Home.Lon, clk, nil)
	defer f.Close()

	// let the generator goroutine register its ticker
	time.Sleep(10 * time.Millisecond)
	clk.Add(time.Second)

	d := &Decoder{Strict: true}
	c := NewCache(clk)
	deadline := time.After(2 * time.Second)
	for !c.Snapshot().HasPosition() {
		select {
		case l := <-f.Lines():
			c.Update(d.Decode(l))
		case <-deadline:
			t.Fatalf("no simulated fix received")
		}
	}

	snap := c.Snapshot()
	if d := *snap.Latitude - Home.Lat; d < -0.006 || d > 0.006 {
		t.Fatalf("lat %v too far from home", *snap.Latitude)
	}
	if snap.SpeedKMH < 109 || snap.SpeedKMH > 121 {
		t.Fatalf("speed %v outside simulated range", snap.SpeedKMH)
	}
}
