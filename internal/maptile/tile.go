// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package maptile renders an offline slippy-map view around a GPS position
// from a directory of pre-rendered Web-Mercator tiles.
package maptile

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"math"
	"path"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/golang/groupcache/lru"
)

// MaxLatitude is the Web-Mercator latitude limit.
const MaxLatitude = 85.05112878

// ErrTileMissing is returned by a Store when no file exists for an address.
var ErrTileMissing = errors.New("maptile: tile missing")

// Address identifies one tile in XYZ (top-left origin) numbering.
type Address struct {
	Zoom int
	X    int
	Y    int
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Zoom, a.X, a.Y)
}

// Valid reports whether the address lies inside the world at its zoom.
func (a Address) Valid() bool {
	n := 1 << a.Zoom
	return a.Zoom >= 0 && a.X >= 0 && a.Y >= 0 && a.X < n && a.Y < n
}

// Project converts a position to global pixel coordinates at zoom for square
// tiles of tileSize pixels. Latitude is clamped to the Mercator limit.
func Project(lat, lon float64, zoom, tileSize int) (x, y float64) {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	latRad := lat * math.Pi / 180
	world := math.Exp2(float64(zoom)) * float64(tileSize)
	x = (lon + 180) / 360 * world
	y = (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * world
	return x, y
}

// TileAt returns the XYZ tile containing a position.
func TileAt(lat, lon float64, zoom int) Address {
	x, y := Project(lat, lon, zoom, 1)
	return Address{Zoom: zoom, X: int(math.Floor(x)), Y: int(math.Floor(y))}
}

// Store yields decoded tiles. Implementations return ErrTileMissing (possibly
// wrapped) for holes and any other error for unreadable files.
type Store interface {
	Tile(a Address) (image.Image, error)
}

// Layout selects how tile rows are numbered on disk.
type Layout int

const (
	// XYZ numbers rows from the top (OSM / QGIS "XYZ tiles").
	XYZ Layout = iota
	// TMS numbers rows from the bottom.
	TMS
)

func (l Layout) String() string {
	if l == TMS {
		return "tms"
	}
	return "xyz"
}

// ParseLayout accepts "xyz" or "tms".
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "xyz", "XYZ":
		return XYZ, nil
	case "tms", "TMS":
		return TMS, nil
	default:
		return XYZ, fmt.Errorf("unknown tile layout %q (want xyz or tms)", s)
	}
}

// DirStore reads {zoom}/{x}/{y}.png files from a filesystem.
type DirStore struct {
	fsys   fs.FS
	layout Layout
}

// NewDirStore returns a store over fsys using the given row numbering.
func NewDirStore(fsys fs.FS, layout Layout) *DirStore {
	return &DirStore{fsys: fsys, layout: layout}
}

// Layout returns the row numbering in use.
func (s *DirStore) Layout() Layout { return s.layout }

// Path returns the slash-separated file name for an XYZ address.
func (s *DirStore) Path(a Address) string {
	y := a.Y
	if s.layout == TMS {
		y = (1<<a.Zoom - 1) - a.Y
	}
	return path.Join(strconv.Itoa(a.Zoom), strconv.Itoa(a.X), strconv.Itoa(y)+".png")
}

// Tile opens and decodes one tile.
func (s *DirStore) Tile(a Address) (image.Image, error) {
	if !a.Valid() {
		return nil, ErrTileMissing
	}
	name := s.Path(a)
	f, err := s.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrTileMissing
		}
		return nil, fmt.Errorf("open tile %s: %w", name, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode tile %s: %w", name, err)
	}
	return img, nil
}

// DetectLayout probes the tile under a known position. It picks TMS only when
// the flipped file exists and the XYZ one does not.
func DetectLayout(fsys fs.FS, zoom int, lat, lon float64) Layout {
	a := TileAt(lat, lon, zoom)
	xyz := NewDirStore(fsys, XYZ).Path(a)
	tms := NewDirStore(fsys, TMS).Path(a)
	if exists(fsys, tms) && !exists(fsys, xyz) {
		log.Printf("maptile: detected TMS tile layout (%s present, %s absent)", tms, xyz)
		return TMS
	}
	return XYZ
}

func exists(fsys fs.FS, name string) bool {
	_, err := fs.Stat(fsys, name)
	return err == nil
}

// CachedStore keeps recently decoded tiles in memory. Missing tiles are cached
// too so holes are not re-probed on every frame.
type CachedStore struct {
	mu    sync.Mutex
	next  Store
	cache *lru.Cache
}

type cachedTile struct {
	img image.Image
	err error
}

// NewCachedStore wraps next with an LRU of up to size entries.
func NewCachedStore(next Store, size int) *CachedStore {
	return &CachedStore{next: next, cache: lru.New(size)}
}

func (c *CachedStore) Tile(a Address) (image.Image, error) {
	c.mu.Lock()
	if v, ok := c.cache.Get(a); ok {
		c.mu.Unlock()
		t := v.(cachedTile)
		return t.img, t.err
	}
	c.mu.Unlock()

	img, err := c.next.Tile(a)
	if err != nil && !errors.Is(err, ErrTileMissing) {
		// corrupt files are reported every time
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(a, cachedTile{img: img, err: err})
	c.mu.Unlock()
	return img, err
}
