// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
)

// RunDisplay mirrors the essentials of the dashboard onto a 128x64 SSD1306
// OLED until ctx is done.
func RunDisplay(ctx context.Context, bus i2c.Bus, addr uint16, interval time.Duration, d *Dashboard) error {
	dev, err := ssd1306.NewI2C(bus, addr, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Printf("display: initialized at 0x%02X", addr)

	if err := dev.Draw(dev.Bounds(), splashImage(d.Store().Snapshot().Version), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			img := oledImage(d.Store().Snapshot())
			if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

type oledLine struct {
	x, y int
	text string
}

func drawOLED(lines []oledLine) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for _, l := range lines {
		drawer.Dot = fixed.P(l.x, l.y)
		drawer.DrawString(l.text)
	}
	return img
}

func splashImage(version string) *image1bit.VerticalLSB {
	if version == "" {
		version = "dev"
	}
	return drawOLED([]oledLine{
		{20, 26, "Peugeot 106"},
		{25, 43, "Dashboard"},
		{25, 56, "v" + version},
	})
}

// oledImage is speed and time on top, RPM and climate below, and whatever
// needs attention on the last line.
func oledImage(s state.Dashboard) *image1bit.VerticalLSB {
	status := fmt.Sprintf("in %2.0fC out %2.0fC", s.TempInside, s.TempOutside)
	switch {
	case s.CalibrationState != state.CalibrationIdle:
		status = "calib: " + s.CalibrationState
	case s.UpdateInProgress:
		status = "updating..."
	case s.GPSStale:
		status = "GPS: no data"
	}
	return drawOLED([]oledLine{
		{0, 13, fmt.Sprintf("%s %9s", s.GPSTime, s.CurrentView)},
		{0, 26, fmt.Sprintf("%5.1f km/h", s.Velocity)},
		{0, 39, fmt.Sprintf("%4d rpm", s.RPM)},
		{0, 52, status},
	})
}
