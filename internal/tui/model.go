// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tui is a terminal rendition of the dashboard, for bench testing
// without the web client.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JojoErer/dashboard-peugeot-106/internal/sensors"
	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
)

// Controller is what the keys act on.
type Controller interface {
	NextView() string
	NextOverlay() bool
	RequestUpdate() bool
	Calibrate() bool
	PressButton(name string) error
}

// Model is the bubbletea model.
type Model struct {
	ctrl    Controller
	changes <-chan state.Change

	state  state.Dashboard
	status string

	keys keyMap
	help help.Model

	width  int
	height int
}

// New starts from initial and follows changes until the channel is closed.
func New(ctrl Controller, initial state.Dashboard, changes <-chan state.Change) Model {
	return Model{
		ctrl:    ctrl,
		changes: changes,
		state:   initial,
		keys:    defaultKeys(),
		help:    help.New(),
	}
}

type changeMsg state.Change

type closedMsg struct{}

func waitForChange(ch <-chan state.Change) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return changeMsg(c)
	}
}

func (m Model) Init() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	return waitForChange(m.changes)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	case changeMsg:
		m.state = msg.State
		return m, waitForChange(m.changes)
	case closedMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.NextView):
			m.status = "view: " + m.ctrl.NextView()
		case key.Matches(msg, m.keys.Overlay):
			if m.ctrl.NextOverlay() {
				m.status = "overlay on"
			} else {
				m.status = "overlay off"
			}
		case key.Matches(msg, m.keys.Calibrate):
			if m.ctrl.Calibrate() {
				m.status = "calibrating..."
			} else {
				m.status = "calibration already in progress"
			}
		case key.Matches(msg, m.keys.Update):
			if m.ctrl.RequestUpdate() {
				m.status = "update started"
			} else {
				m.status = "update not started"
			}
		case key.Matches(msg, m.keys.ButtonA):
			m.status = m.press(sensors.ButtonNext)
		case key.Matches(msg, m.keys.ButtonB):
			m.status = m.press(sensors.ButtonExtra)
		}
	}
	return m, nil
}

func (m Model) press(name string) string {
	if err := m.ctrl.PressButton(name); err != nil {
		return err.Error()
	}
	return "pressed " + name
}
