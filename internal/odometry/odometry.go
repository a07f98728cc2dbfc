// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package odometry

import (
	"math"
	"time"

	"github.com/relabs-tech/drive_computer/internal/motor"
)

// State is the dead-reckoned motion of the robot.
type State struct {
	GroundSpeed float64   `json:"ground_speed"` // mm/s
	TurnRate    float64   `json:"turn_rate"`    // rad/s, positive turns left
	Heading     float64   `json:"heading"`      // degrees, [0, 360)
	Updated     time.Time `json:"updated"`
}

// Integrator derives ground speed, turn rate and heading from wheel speeds.
// There is no absolute correction; drift accumulates.
type Integrator struct {
	state State
}

// NewIntegrator returns an integrator starting at heading 0.
func NewIntegrator() *Integrator {
	return &Integrator{}
}

// State returns a copy of the current odometry.
func (i *Integrator) State() State {
	return i.state
}

// SetHeading overrides the accumulated heading, normalised into [0, 360).
func (i *Integrator) SetHeading(deg float64) {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	i.state.Heading = deg
}

// Integrate advances the state using wheel speeds in pulses/s. The first call
// only records the timestamp.
func (i *Integrator) Integrate(speedLeft, speedRight float64, g motor.Geometry, now time.Time) {
	left := speedLeft / g.GainLeft // mm/s
	right := speedRight / g.GainRight

	i.state.GroundSpeed = (left + right) / 2
	i.state.TurnRate = (right - left) / g.TrackSpan

	if !i.state.Updated.IsZero() {
		elapsedMillis := float64(now.Sub(i.state.Updated)) / float64(time.Millisecond)
		i.state.Heading = wrapOnce(i.state.Heading + i.state.TurnRate*elapsedMillis*(180.0/(1000.0*math.Pi)))
	}
	i.state.Updated = now
}

// wrapOnce folds a heading back into [0, 360). Per-tick rotation is far below
// a full turn, so a single correction is enough.
func wrapOnce(deg float64) float64 {
	if deg >= 360 {
		return deg - 360
	}
	if deg < 0 {
		return deg + 360
	}
	return deg
}
