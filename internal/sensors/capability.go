// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors wraps the car's hardware inputs. Every input is exposed as a
// Source with a hardware and a simulated implementation; which one is used is
// decided once at startup from a probed Capability.
package sensors

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrSimulated marks a capability that resolved to simulation.
var ErrSimulated = errors.New("sensors: simulated")

// Source produces one reading per call.
type Source[T any] interface {
	Read() (T, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func() (T, error)

func (f SourceFunc[T]) Read() (T, error) { return f() }

// Capability is the result of probing for a piece of hardware: either a real
// handle or the reason it is simulated.
type Capability[H any] struct {
	handle H
	real   bool
	reason string
}

// Real wraps a usable hardware handle.
func Real[H any](h H) Capability[H] {
	return Capability[H]{handle: h, real: true}
}

// Simulated records why no hardware handle is available.
func Simulated[H any](format string, args ...any) Capability[H] {
	return Capability[H]{reason: fmt.Sprintf(format, args...)}
}

// Handle returns the hardware handle, if any.
func (c Capability[H]) Handle() (H, bool) { return c.handle, c.real }

// IsReal reports whether the probe found hardware.
func (c Capability[H]) IsReal() bool { return c.real }

// Err is nil for real hardware and wraps ErrSimulated otherwise.
func (c Capability[H]) Err() error {
	if c.real {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSimulated, c.reason)
}

// Reason is the simulation reason; empty for real hardware.
func (c Capability[H]) Reason() string { return c.reason }

// Select opens the hardware source when the capability is real and falls
// back to the simulated one otherwise, or when opening fails. The outcome is
// recorded in r.
func Select[T, H any](r *Report, name string, c Capability[H], open func(H) (Source[T], error), sim func() Source[T]) Source[T] {
	h, ok := c.Handle()
	if !ok {
		log.Printf("sensors: %s simulated (%s)", name, c.Reason())
		r.Add(name, false, c.Reason())
		return sim()
	}
	src, err := open(h)
	if err != nil {
		log.Printf("sensors: %s simulated (%v)", name, err)
		r.Add(name, false, err.Error())
		return sim()
	}
	log.Printf("sensors: %s ready", name)
	r.Add(name, true, "")
	return src
}

// ReportEntry is one line of the startup report.
type ReportEntry struct {
	Name   string `json:"name"`
	Real   bool   `json:"real"`
	Detail string `json:"detail,omitempty"`
}

// Report aggregates startup probe results into a single status text.
type Report struct {
	Entries []ReportEntry `json:"entries"`
}

// Add records one sensor outcome.
func (r *Report) Add(name string, real bool, detail string) {
	r.Entries = append(r.Entries, ReportEntry{Name: name, Real: real, Detail: detail})
}

// Simulated returns the names of simulated sensors.
func (r *Report) Simulated() []string {
	var out []string
	for _, e := range r.Entries {
		if !e.Real {
			out = append(out, e.Name)
		}
	}
	return out
}

// String renders e.g. "All sensors OK" or
// "Sensors: 3 OK, 2 simulated\nlight: no GPIO\nrpm: no gpiochip".
func (r *Report) String() string {
	sim := r.Simulated()
	if len(sim) == 0 {
		return "All sensors OK"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Sensors: %d OK, %d simulated", len(r.Entries)-len(sim), len(sim))
	for _, e := range r.Entries {
		if !e.Real {
			fmt.Fprintf(&b, "\n%s: %s", e.Name, e.Detail)
		}
	}
	return b.String()
}
