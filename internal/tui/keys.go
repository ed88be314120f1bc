// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextView  key.Binding
	Overlay   key.Binding
	Calibrate key.Binding
	Update    key.Binding
	ButtonA   key.Binding
	ButtonB   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		NextView:  key.NewBinding(key.WithKeys("n", "right", "tab"), key.WithHelp("n/→", "next view")),
		Overlay:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "overlay")),
		Calibrate: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "calibrate")),
		Update:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "update")),
		ButtonA:   key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "press next button")),
		ButtonB:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "press extra button")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextView, k.Overlay, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextView, k.Overlay, k.Calibrate, k.Update},
		{k.ButtonA, k.ButtonB, k.Help, k.Quit},
	}
}
