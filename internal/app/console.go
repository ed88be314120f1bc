// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JojoErer/dashboard-peugeot-106/internal/tui"
)

// ErrQuit is returned by RunConsole when the user quits, so the caller can
// tear down the other surfaces.
var ErrQuit = errors.New("console closed")

// RunConsole shows the dashboard in the terminal until the user quits or
// ctx is done.
func RunConsole(ctx context.Context, d *Dashboard) error {
	changes, cancel := d.Store().Subscribe(8)
	defer cancel()

	p := tea.NewProgram(tui.New(d, d.Store().Snapshot(), changes),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	switch {
	case errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil:
		return nil
	case err != nil:
		return err
	}
	return ErrQuit
}
