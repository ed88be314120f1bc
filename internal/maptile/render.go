// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package maptile

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	backgroundColor  = color.NRGBA{220, 220, 220, 255}
	placeholderColor = color.NRGBA{180, 180, 180, 255}
)

const markerRadius = 8

// Renderer stitches tiles around a position into a square view.
type Renderer struct {
	Store    Store
	Zoom     int
	TileSize int
	ViewSize int
}

// Viewport is the pixel window a render covers, in global pixel space.
type Viewport struct {
	CenterX, CenterY float64
	MinTileX         int
	MinTileY         int
	MaxTileX         int
	MaxTileY         int
}

// Viewport computes the tile range needed to cover a ViewSize square
// centred on lat/lon.
func (r *Renderer) Viewport(lat, lon float64) Viewport {
	cx, cy := Project(lat, lon, r.Zoom, r.TileSize)
	half := float64(r.ViewSize) / 2
	t := float64(r.TileSize)
	return Viewport{
		CenterX:  cx,
		CenterY:  cy,
		MinTileX: int(math.Floor((cx - half) / t)),
		MinTileY: int(math.Floor((cy - half) / t)),
		MaxTileX: int(math.Floor((cx + half) / t)),
		MaxTileY: int(math.Floor((cy + half) / t)),
	}
}

// Render returns a ViewSize x ViewSize image centred on lat/lon with a
// position marker in the middle. Missing tiles become labelled placeholders;
// only unreadable tiles make Render fail.
func (r *Renderer) Render(lat, lon float64) (image.Image, error) {
	if r.TileSize <= 0 || r.ViewSize <= 0 {
		return nil, fmt.Errorf("maptile: invalid sizes tile=%d view=%d", r.TileSize, r.ViewSize)
	}
	vp := r.Viewport(lat, lon)
	t := r.TileSize

	cols := vp.MaxTileX - vp.MinTileX + 1
	rows := vp.MaxTileY - vp.MinTileY + 1
	canvas := imaging.New(cols*t, rows*t, backgroundColor)

	for tx := vp.MinTileX; tx <= vp.MaxTileX; tx++ {
		for ty := vp.MinTileY; ty <= vp.MaxTileY; ty++ {
			tile, err := r.tile(Address{Zoom: r.Zoom, X: tx, Y: ty})
			if err != nil {
				return nil, err
			}
			canvas = imaging.Paste(canvas, tile, image.Pt((tx-vp.MinTileX)*t, (ty-vp.MinTileY)*t))
		}
	}

	half := float64(r.ViewSize) / 2
	ox := int(math.Floor(vp.CenterX - float64(vp.MinTileX*t) - half))
	oy := int(math.Floor(vp.CenterY - float64(vp.MinTileY*t) - half))
	view := imaging.Crop(canvas, image.Rect(ox, oy, ox+r.ViewSize, oy+r.ViewSize))

	return drawMarker(view), nil
}

func (r *Renderer) tile(a Address) (image.Image, error) {
	if r.Store == nil {
		return placeholder(a, r.TileSize), nil
	}
	img, err := r.Store.Tile(a)
	switch {
	case errors.Is(err, ErrTileMissing):
		return placeholder(a, r.TileSize), nil
	case err != nil:
		return nil, fmt.Errorf("render tile %s: %w", a, err)
	}
	if b := img.Bounds(); b.Dx() != r.TileSize || b.Dy() != r.TileSize {
		img = imaging.Resize(img, r.TileSize, r.TileSize, imaging.Lanczos)
	}
	return img, nil
}

// placeholder is a flat grey square labelled "x,y".
func placeholder(a Address, size int) image.Image {
	img := imaging.New(size, size, placeholderColor)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 23),
	}
	d.DrawString(fmt.Sprintf("%d,%d", a.X, a.Y))
	return img
}

// drawMarker puts a red dot with a white ring on the view centre.
func drawMarker(view *image.NRGBA) image.Image {
	dc := gg.NewContextForImage(view)
	c := float64(view.Bounds().Dx()) / 2
	dc.DrawCircle(c, c, markerRadius)
	dc.SetRGB(1, 0, 0)
	dc.FillPreserve()
	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(2)
	dc.Stroke()
	return dc.Image()
}
