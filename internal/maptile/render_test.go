package maptile

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"testing/fstest"
)

func solidPNG(t *testing.T, size int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func rgb(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func TestProject(t *testing.T) {
	x, y := Project(0, 0, 0, 256)
	if x != 128 || math.Abs(y-128) > 1e-9 {
		t.Fatalf("Project(0,0,z0) = %v,%v want 128,128", x, y)
	}

	// clamped latitudes stay inside the world
	_, top := Project(89.9, 0, 3, 256)
	_, bottom := Project(-89.9, 0, 3, 256)
	if top < -1e-6 || bottom > 8*256+1e-6 {
		t.Fatalf("clamp failed: top=%v bottom=%v", top, bottom)
	}

	a := TileAt(52.0907, 5.1214, 14)
	if a.X != 8425 || a.Y != 5405 {
		t.Fatalf("TileAt = %+v", a)
	}
}

func TestRenderWithoutTilesIsAllPlaceholder(t *testing.T) {
	r := &Renderer{Store: NewDirStore(fstest.MapFS{}, XYZ), Zoom: 14, TileSize: 256, ViewSize: 300}

	img, err := r.Render(52.1070, 5.1214)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 300 {
		t.Fatalf("size=%v want 300x300", b)
	}
	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			if dx, dy := x-150, y-150; dx*dx+dy*dy < 16*16 {
				continue // marker
			}
			if r, g, b := rgb(img, x, y); r == 220 && g == 220 && b == 220 {
				t.Fatalf("uncovered background at %d,%d", x, y)
			}
		}
	}
	if r, g, b := rgb(img, 150, 150); r != 255 || g != 0 || b != 0 {
		t.Fatalf("centre pixel = %d,%d,%d want red marker", r, g, b)
	}
}

func TestRenderSizeIsStableAcrossPositions(t *testing.T) {
	r := &Renderer{Zoom: 3, TileSize: 64, ViewSize: 101}
	for _, p := range [][2]float64{{0, 0}, {85, 179.9}, {-85, -180}, {52.1, 5.1}, {12.345, -67.89}} {
		img, err := r.Render(p[0], p[1])
		if err != nil {
			t.Fatalf("Render(%v): %v", p, err)
		}
		if b := img.Bounds(); b.Dx() != 101 || b.Dy() != 101 {
			t.Fatalf("Render(%v) size=%v", p, b)
		}
	}
}

func TestRenderUsesStoredTiles(t *testing.T) {
	const zoom, size = 14, 256
	lat, lon := 52.1070, 5.1214
	r := &Renderer{Zoom: zoom, TileSize: size, ViewSize: 100}

	vp := r.Viewport(lat, lon)
	blue := solidPNG(t, size, color.NRGBA{0, 0, 255, 255})
	fsys := fstest.MapFS{}
	store := NewDirStore(fsys, XYZ)
	for x := vp.MinTileX; x <= vp.MaxTileX; x++ {
		for y := vp.MinTileY; y <= vp.MaxTileY; y++ {
			fsys[store.Path(Address{zoom, x, y})] = &fstest.MapFile{Data: blue}
		}
	}
	r.Store = store

	img, err := r.Render(lat, lon)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r, g, b := rgb(img, 2, 2); r != 0 || g != 0 || b != 255 {
		t.Fatalf("corner = %d,%d,%d want tile blue", r, g, b)
	}
}

func TestRenderResizesOddTiles(t *testing.T) {
	a := Address{Zoom: 0, X: 0, Y: 0}
	fsys := fstest.MapFS{"0/0/0.png": {Data: solidPNG(t, 32, color.NRGBA{0, 255, 0, 255})}}
	r := &Renderer{Store: NewDirStore(fsys, XYZ), Zoom: a.Zoom, TileSize: 64, ViewSize: 64}

	img, err := r.Render(0, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r, g, b := rgb(img, 5, 5); r > 5 || g < 250 || b > 5 {
		t.Fatalf("pixel = %d,%d,%d want green", r, g, b)
	}
}

func TestRenderFailsOnCorruptTile(t *testing.T) {
	fsys := fstest.MapFS{"0/0/0.png": {Data: []byte("not a png")}}
	r := &Renderer{Store: NewDirStore(fsys, XYZ), Zoom: 0, TileSize: 64, ViewSize: 32}
	if _, err := r.Render(0, 0); err == nil {
		t.Fatalf("expected error for corrupt tile")
	}
}

func TestTMSLayout(t *testing.T) {
	const zoom = 14
	lat, lon := 52.0907, 5.1214
	a := TileAt(lat, lon, zoom)

	tms := NewDirStore(fstest.MapFS{}, TMS)
	fsys := fstest.MapFS{tms.Path(a): {Data: solidPNG(t, 16, color.NRGBA{255, 255, 0, 255})}}

	if got := DetectLayout(fsys, zoom, lat, lon); got != TMS {
		t.Fatalf("DetectLayout = %v want tms", got)
	}
	if got := DetectLayout(fstest.MapFS{}, zoom, lat, lon); got != XYZ {
		t.Fatalf("DetectLayout on empty dir = %v want xyz", got)
	}

	want := "14/8425/10978.png"
	if got := tms.Path(a); got != want {
		t.Fatalf("TMS path = %s want %s", got, want)
	}
	if _, err := NewDirStore(fsys, TMS).Tile(a); err != nil {
		t.Fatalf("TMS store could not read flipped tile: %v", err)
	}
	if _, err := NewDirStore(fsys, XYZ).Tile(a); !errors.Is(err, ErrTileMissing) {
		t.Fatalf("XYZ store err = %v want ErrTileMissing", err)
	}
}

type countingStore struct {
	calls int
	err   error
}

func (s *countingStore) Tile(Address) (image.Image, error) {
	s.calls++
	return nil, s.err
}

func TestCachedStore(t *testing.T) {
	missing := &countingStore{err: ErrTileMissing}
	c := NewCachedStore(missing, 8)
	for i := 0; i < 3; i++ {
		if _, err := c.Tile(Address{1, 0, 0}); !errors.Is(err, ErrTileMissing) {
			t.Fatalf("err = %v", err)
		}
	}
	if missing.calls != 1 {
		t.Fatalf("missing tile probed %d times, want 1", missing.calls)
	}

	broken := &countingStore{err: errors.New("io")}
	c = NewCachedStore(broken, 8)
	c.Tile(Address{1, 0, 0})
	c.Tile(Address{1, 0, 0})
	if broken.calls != 2 {
		t.Fatalf("broken tile cached: %d calls", broken.calls)
	}
}

func TestParseLayout(t *testing.T) {
	if l, err := ParseLayout("tms"); err != nil || l != TMS {
		t.Fatalf("ParseLayout(tms) = %v, %v", l, err)
	}
	if _, err := ParseLayout("quadkey"); err == nil {
		t.Fatalf("expected error")
	}
}
