// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/benbjohnson/clock"
	serial "github.com/jacobsa/go-serial/serial"
)

// Feed delivers raw NMEA lines. Lines are queued until drained; the channel
// is closed when the feed stops.
type Feed interface {
	Lines() <-chan string
	Close() error
}

const feedBuffer = 64

// Drain returns up to max queued lines without blocking.
func Drain(lines <-chan string, max int) []string {
	var out []string
	for len(out) < max {
		select {
		case l, ok := <-lines:
			if !ok {
				return out
			}
			out = append(out, l)
		default:
			return out
		}
	}
	return out
}

// readerFeed scans lines from any io.ReadCloser on its own goroutine.
type readerFeed struct {
	rc    io.ReadCloser
	lines chan string
	done  chan struct{}
	once  sync.Once
}

func newReaderFeed(rc io.ReadCloser) *readerFeed {
	f := &readerFeed{
		rc:    rc,
		lines: make(chan string, feedBuffer),
		done:  make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *readerFeed) run() {
	defer close(f.lines)
	sc := bufio.NewScanner(f.rc)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		// NMEA sentences start with '$'; anything else is line noise
		if !strings.HasPrefix(line, "$") {
			continue
		}
		select {
		case f.lines <- line:
		case <-f.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		select {
		case <-f.done:
		default:
			log.Printf("gps: read error: %v", err)
		}
	}
}

func (f *readerFeed) Lines() <-chan string { return f.lines }

func (f *readerFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.rc.Close()
	})
	return err
}

// NewReaderFeed wraps an already open NMEA stream.
func NewReaderFeed(rc io.ReadCloser) Feed {
	return newReaderFeed(rc)
}

// OpenSerialFeed opens the receiver's serial port (/dev/serial0, /dev/ttyUSB0, ...).
func OpenSerialFeed(port string, baud int) (Feed, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	rc, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open gps serial port %s: %w", port, err)
	}
	log.Printf("gps: serial port opened on %s at %d baud", port, baud)
	return newReaderFeed(rc), nil
}

// Home is the default simulated position.
var Home = struct{ Lat, Lon float64 }{52.1070, 5.1214}

// SimulatedFeed emits an RMC+GGA pair every second describing a receiver that
// wanders around a fixed point at motorway speed.
type SimulatedFeed struct {
	lines  chan string
	done   chan struct{}
	once   sync.Once
	clock  clock.Clock
	rng    *rand.Rand
	lat    float64
	lon    float64
	period time.Duration
}

// NewSimulatedFeed starts a simulated receiver centred on lat/lon.
func NewSimulatedFeed(lat, lon float64, clk clock.Clock, rng *rand.Rand) *SimulatedFeed {
	if clk == nil {
		clk = clock.New()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 106))
	}
	f := &SimulatedFeed{
		lines:  make(chan string, feedBuffer),
		done:   make(chan struct{}),
		clock:  clk,
		rng:    rng,
		lat:    lat,
		lon:    lon,
		period: time.Second,
	}
	go f.run()
	return f
}

func (f *SimulatedFeed) run() {
	defer close(f.lines)
	ticker := f.clock.Ticker(f.period)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case t := <-ticker.C:
			lat := f.lat + (f.rng.Float64()*2-1)*0.005
			lon := f.lon + (f.rng.Float64()*2-1)*0.005
			speed := 110 + f.rng.Float64()*10
			for _, line := range []string{FormatRMC(t, lat, lon, speed), FormatGGA(t, lat, lon, 8, 0.9)} {
				select {
				case f.lines <- line:
				case <-f.done:
					return
				default:
					// nobody is draining; drop rather than stall the generator
				}
			}
		}
	}
}

func (f *SimulatedFeed) Lines() <-chan string { return f.lines }

func (f *SimulatedFeed) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

// FormatRMC builds a checksummed $GPRMC sentence.
func FormatRMC(t time.Time, lat, lon, speedKMH float64) string {
	t = t.UTC()
	la, ns := formatDMM(lat, 2, "N", "S")
	lo, ew := formatDMM(lon, 3, "E", "W")
	body := fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,%.1f,0.0,%s,,",
		t.Format("150405"), la, ns, lo, ew, speedKMH/KnotsToKMH, t.Format("020106"))
	return "$" + body + "*" + nmea.Checksum(body)
}

// FormatGGA builds a checksummed $GPGGA sentence with fix quality 1.
func FormatGGA(t time.Time, lat, lon float64, sats int, hdop float64) string {
	t = t.UTC()
	la, ns := formatDMM(lat, 2, "N", "S")
	lo, ew := formatDMM(lon, 3, "E", "W")
	body := fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,%02d,%.1f,0.0,M,0.0,M,,",
		t.Format("150405"), la, ns, lo, ew, sats, hdop)
	return "$" + body + "*" + nmea.Checksum(body)
}

func formatDMM(v float64, degDigits int, pos, neg string) (string, string) {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	minutes := (v - deg) * 60
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(deg), minutes), hemi
}
