// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"periph.io/x/conn/v3/gpio"
)

// Button names
const (
	ButtonNext  = "next"
	ButtonExtra = "extra"
)

// DefaultDebounce is the minimum time between two accepted presses.
const DefaultDebounce = 300 * time.Millisecond

// Buttons polls active-low push buttons. Presses can also be injected with
// Press, which is how simulated buttons (and the web/TUI remotes) work.
type Buttons struct {
	clock    clock.Clock
	debounce time.Duration

	mu      sync.Mutex
	pins    map[string]gpio.PinIO // nil entry means simulated
	last    map[string]time.Time
	pending map[string]bool
}

// NewButtons sets up the named buttons. Real pins are configured with pull-ups;
// simulated ones only respond to Press.
func NewButtons(clk clock.Clock, debounce time.Duration, caps map[string]Capability[gpio.PinIO], r *Report) *Buttons {
	if clk == nil {
		clk = clock.New()
	}
	b := &Buttons{
		clock:    clk,
		debounce: debounce,
		pins:     make(map[string]gpio.PinIO, len(caps)),
		last:     make(map[string]time.Time, len(caps)),
		pending:  make(map[string]bool, len(caps)),
	}

	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		label := "button " + name
		p, ok := caps[name].Handle()
		if !ok {
			r.Add(label, false, caps[name].Reason())
			b.pins[name] = nil
			continue
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			r.Add(label, false, err.Error())
			b.pins[name] = nil
			continue
		}
		r.Add(label, true, "")
		b.pins[name] = p
	}
	return b
}

// Press queues a press for the next Pressed call.
func (b *Buttons) Press(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pins[name]; !ok {
		return fmt.Errorf("unknown button %q", name)
	}
	b.pending[name] = true
	return nil
}

// Pressed reports whether the button is down (or a press was queued), at most
// once per debounce window. Presses queued inside the window are dropped.
func (b *Buttons) Pressed(name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pin, ok := b.pins[name]
	if !ok {
		return false, fmt.Errorf("unknown button %q", name)
	}
	now := b.clock.Now()
	if last, ok := b.last[name]; ok && now.Sub(last) < b.debounce {
		delete(b.pending, name)
		return false, nil
	}

	pressed := b.pending[name]
	delete(b.pending, name)
	if !pressed && pin != nil {
		pressed = pin.Read() == gpio.Low
	}
	if pressed {
		b.last[name] = now
	}
	return pressed, nil
}

// Names returns the configured button names.
func (b *Buttons) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.pins))
	for n := range b.pins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
