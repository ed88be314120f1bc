// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package render draws the clock and acceleration views as images for the
// web client and the OLED.
package render

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// MaxG is the acceleration drawn on the outer ring of the g-ball.
const MaxG = 1.0

var (
	background = color.NRGBA{0, 0, 0, 255}
	gridColor  = color.NRGBA{90, 90, 90, 255}
	ballColor  = color.NRGBA{230, 30, 30, 255}
)

// Clock draws an analog clock face showing t.
func Clock(t time.Time, size int, fg color.Color) image.Image {
	dc := gg.NewContext(size, size)
	dc.SetColor(background)
	dc.Clear()

	c := float64(size) / 2
	r := c - 4

	dc.SetColor(fg)
	dc.SetLineWidth(2)
	dc.DrawCircle(c, c, r)
	dc.Stroke()

	for i := 0; i < 12; i++ {
		a := float64(i) * math.Pi / 6
		inner := r * 0.88
		if i%3 == 0 {
			inner = r * 0.8
		}
		dc.DrawLine(c+inner*math.Sin(a), c-inner*math.Cos(a), c+r*math.Sin(a), c-r*math.Cos(a))
		dc.Stroke()
	}

	minutes := float64(t.Minute()) + float64(t.Second())/60
	hour := float64(t.Hour()%12) + minutes/60
	hand(dc, c, hour/12*2*math.Pi, r*0.5, 4)
	hand(dc, c, minutes/60*2*math.Pi, r*0.8, 3)

	dc.DrawCircle(c, c, 4)
	dc.Fill()
	return dc.Image()
}

// angle is clockwise from 12 o'clock.
func hand(dc *gg.Context, c, angle, length, width float64) {
	dc.SetLineWidth(width)
	dc.DrawLine(c, c, c+length*math.Sin(angle), c-length*math.Cos(angle))
	dc.Stroke()
}

// Accel draws the g-ball: a dot offset from the centre by (ax, ay) in g,
// x to the right and y up, clamped to the outer ring.
func Accel(ax, ay float64, size int) image.Image {
	dc := gg.NewContext(size, size)
	dc.SetColor(background)
	dc.Clear()

	c := float64(size) / 2
	ballR := math.Max(3, float64(size)/20)
	reach := c - ballR - 2

	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	dc.DrawLine(c, c-reach, c, c+reach)
	dc.DrawLine(c-reach, c, c+reach, c)
	dc.Stroke()
	dc.DrawCircle(c, c, reach/2)
	dc.DrawCircle(c, c, reach)
	dc.Stroke()

	dc.SetFontFace(basicfont.Face7x13)
	dc.DrawString("0.5g", c+reach/2+2, c-3)

	x, y := ax/MaxG, ay/MaxG
	if n := math.Hypot(x, y); n > 1 {
		x, y = x/n, y/n
	}
	dc.SetColor(ballColor)
	dc.DrawCircle(c+x*reach, c-y*reach, ballR)
	dc.Fill()
	return dc.Image()
}
