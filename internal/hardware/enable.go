// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hardware

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// EnablePin drives the motor driver's enable (or e-stop relay) line. A nil
// or unconfigured EnablePin does nothing, for rigs without the line wired.
type EnablePin struct {
	name string
	pin  gpio.PinOut
}

// OpenEnablePin looks up the named GPIO. An empty name returns a no-op pin.
func OpenEnablePin(name string) (*EnablePin, error) {
	if name == "" {
		return &EnablePin{}, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("enable pin %q not found", name)
	}
	return newEnablePin(name, p), nil
}

func newEnablePin(name string, p gpio.PinOut) *EnablePin {
	return &EnablePin{name: name, pin: p}
}

// Enable drives the line high.
func (e *EnablePin) Enable() error {
	return e.set(gpio.High)
}

// Disable drives the line low, cutting motor power on rigs that gate it.
func (e *EnablePin) Disable() error {
	return e.set(gpio.Low)
}

func (e *EnablePin) set(l gpio.Level) error {
	if e == nil || e.pin == nil {
		return nil
	}
	if err := e.pin.Out(l); err != nil {
		return fmt.Errorf("enable pin %s: %w", e.name, err)
	}
	log.Printf("hardware: enable pin %s -> %s", e.name, l)
	return nil
}
