// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/JojoErer/dashboard-peugeot-106/internal/render"
	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
	"github.com/JojoErer/dashboard-peugeot-106/internal/views"
)

var (
	frameStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	overlayStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1).
			BorderForeground(lipgloss.Color("241"))
)

func (m Model) accent() lipgloss.Style {
	if m.state.IsDaytime {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#FFDC00"))
}

func (m Model) View() string {
	s := m.state

	header := titleStyle.Render(fmt.Sprintf("%s  %5.1f km/h  %4d rpm", s.GPSTime, s.Velocity, s.RPM)) +
		dimStyle.Render("  ["+s.CurrentView+"]")

	body := m.accent().Render(m.viewBody())
	if s.OverlayVisible {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, "  ", overlayStyle.Render(overlay(s)))
	}

	parts := []string{header, frameStyle.Render(body)}
	for _, line := range []string{s.SensorStatus, s.UpdateStatus} {
		if line != "" {
			parts = append(parts, warnStyle.Render(line))
		}
	}
	if m.status != "" {
		parts = append(parts, dimStyle.Render(m.status))
	}
	parts = append(parts, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewBody() string {
	s := m.state
	switch s.CurrentView {
	case views.Clock:
		return fmt.Sprintf("%s\n\nspeed %5.1f km/h", s.GPSTime, s.Velocity)
	case views.Accel:
		cal := ""
		if s.CalibrationState != state.CalibrationIdle {
			cal = "\ncalibration: " + s.CalibrationState
		}
		return fmt.Sprintf("%s\nax %+5.2f g  ay %+5.2f g\nroll %+6.1f°  pitch %+6.1f°%s",
			gBall(s.AX, s.AY, 10), s.AX, s.AY, s.Roll, s.Pitch, cal)
	case views.Map:
		pos := "no fix yet"
		if s.HasPosition {
			pos = fmt.Sprintf("%.5f, %.5f", s.CenterLat, s.CenterLon)
		}
		gpsState := "live"
		switch {
		case !s.GPSConnected:
			gpsState = "simulated"
		case s.GPSStale:
			gpsState = "stale"
		}
		return fmt.Sprintf("%s\nfix %d  sats %d  gps %s", pos, s.FixStatus, s.Satellites, gpsState)
	case views.Light:
		mode := "day"
		if !s.IsDaytime {
			mode = "night"
		}
		return fmt.Sprintf("sensor 1: %d\nsensor 2: %d\nmode: %s", s.Light1, s.Light2, mode)
	default:
		return s.CurrentView
	}
}

func overlay(s state.Dashboard) string {
	return strings.Join([]string{
		fmt.Sprintf("inside  %4.1f°C %3.0f%%", s.TempInside, s.HumidityInside),
		fmt.Sprintf("outside %4.1f°C %3.0f%%", s.TempOutside, s.HumidityOutside),
		fmt.Sprintf("pi      %4.1f°C", s.PiTemperature),
	}, "\n")
}

// gBall is the text version of render.Accel: a (2r+1)-square grid with the
// ball offset by the acceleration, clamped to the edge.
func gBall(ax, ay float64, r int) string {
	x, y := ax/render.MaxG, ay/render.MaxG
	if n := math.Hypot(x, y); n > 1 {
		x, y = x/n, y/n
	}
	bx := r + int(math.Round(x*float64(r)))
	by := r - int(math.Round(y*float64(r)))

	var b strings.Builder
	for row := 0; row <= 2*r; row++ {
		for col := 0; col <= 2*r; col++ {
			switch {
			case row == by && col == bx:
				b.WriteRune('●')
			case row == r && col == r:
				b.WriteRune('+')
			case row == r:
				b.WriteRune('─')
			case col == r:
				b.WriteRune('│')
			default:
				b.WriteRune(' ')
			}
		}
		if row < 2*r {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
