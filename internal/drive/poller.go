// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drive

import (
	"fmt"

	"github.com/relabs-tech/drive_computer/internal/motor"
)

// Category is one telemetry group read from the driver.
type Category int

const (
	CategoryVoltage Category = iota
	CategoryTemperature1
	CategoryTemperature2
	CategoryCurrents
	CategoryEncoders
	CategorySpeeds
	CategoryIdle

	categoryCount
)

// CategoryCount is the length of one polling round.
const CategoryCount = int(categoryCount)

var categoryNames = [...]string{
	CategoryVoltage:      "voltage",
	CategoryTemperature1: "temperature1",
	CategoryTemperature2: "temperature2",
	CategoryCurrents:     "currents",
	CategoryEncoders:     "encoders",
	CategorySpeeds:       "speeds",
	CategoryIdle:         "idle",
}

func (c Category) String() string {
	if c < 0 || c >= categoryCount {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// next is the round-robin transition.
func (c Category) next() Category {
	return (c + 1) % categoryCount
}

// Poller reads one telemetry category per call, cycling through all of them.
// It only ever issues reads.
type Poller struct {
	transport Transport
	current   Category
}

// NewPoller returns a poller starting at the supply voltage.
func NewPoller(t Transport) *Poller {
	return &Poller{transport: t, current: CategoryVoltage}
}

// Current returns the category the next Poll will read.
func (p *Poller) Current() Category {
	return p.current
}

// Poll reads the current category into status and advances, whatever the
// outcome. On failure the category's values are left as they were and its
// validity flag is cleared.
func (p *Poller) Poll(status *motor.Status) (Category, error) {
	c := p.current
	p.current = c.next()

	var err error
	switch c {
	case CategoryVoltage:
		var v float64
		if v, err = p.transport.ReadVoltage(); err == nil {
			status.Voltage = v
		}
		status.VoltageValid = err == nil

	case CategoryTemperature1:
		var v float64
		if v, err = p.transport.ReadTemperature(1); err == nil {
			status.Temp1 = v
		}
		status.Temp1Valid = err == nil

	case CategoryTemperature2:
		var v float64
		if v, err = p.transport.ReadTemperature(2); err == nil {
			status.Temp2 = v
		}
		status.Temp2Valid = err == nil

	case CategoryCurrents:
		var l, r float64
		if l, r, err = p.transport.ReadCurrents(); err == nil {
			status.CurrentLeft, status.CurrentRight = l, r
		}
		status.CurrentsValid = err == nil

	case CategoryEncoders:
		var l, r int32
		if l, r, err = p.transport.ReadEncoders(); err == nil {
			status.EncoderLeft, status.EncoderRight = l, r
		}
		status.EncodersValid = err == nil

	case CategorySpeeds:
		var l, r int32
		if l, r, err = p.transport.ReadSpeeds(); err == nil {
			status.SpeedLeft, status.SpeedRight = l, r
		}
		status.SpeedsValid = err == nil

	case CategoryIdle:
	}

	if err != nil {
		return c, fmt.Errorf("poll %s: %w", c, err)
	}
	return c, nil
}
