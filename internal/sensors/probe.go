// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var hostInit = sync.OnceValues(func() (*driverreg.State, error) {
	return host.Init()
})

// deviceAccessible reports whether a device node can be opened read/write.
func deviceAccessible(path string) error {
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// i2cDevicePath maps periph bus names ("1", "/dev/i2c-1", "I2C1") to a node.
func i2cDevicePath(bus string) string {
	switch {
	case strings.HasPrefix(bus, "/dev/"):
		return bus
	case strings.HasPrefix(bus, "I2C"):
		return "/dev/i2c-" + strings.TrimPrefix(bus, "I2C")
	}
	if _, err := strconv.Atoi(bus); err == nil {
		return "/dev/i2c-" + bus
	}
	return ""
}

// ProbeI2C opens an I2C bus. An empty name opens the first bus found.
func ProbeI2C(bus string) Capability[i2c.BusCloser] {
	if _, err := hostInit(); err != nil {
		return Simulated[i2c.BusCloser]("periph host init: %v", err)
	}
	if p := i2cDevicePath(bus); p != "" {
		if err := deviceAccessible(p); err != nil {
			return Simulated[i2c.BusCloser]("no I2C bus: %v", err)
		}
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return Simulated[i2c.BusCloser]("I2C open %q: %v", bus, err)
	}
	return Real(b)
}

// ProbePin looks up a GPIO pin by name ("GPIO18", "18").
func ProbePin(name string) Capability[gpio.PinIO] {
	if _, err := hostInit(); err != nil {
		return Simulated[gpio.PinIO]("periph host init: %v", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return Simulated[gpio.PinIO]("GPIO pin %s not found", name)
	}
	return Real(p)
}

// ProbeGPIOChip checks a GPIO character device for edge counting.
func ProbeGPIOChip(path string) Capability[string] {
	if err := deviceAccessible(path); err != nil {
		return Simulated[string]("no gpiochip: %v", err)
	}
	return Real(path)
}
