// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drive

import (
	"math"

	"github.com/relabs-tech/drive_computer/internal/motor"
)

// Translator turns CommandedMotion into wheel speed setpoints and sends them.
type Translator struct {
	transport Transport
	// ThrottleEpsilon is the |throttle%| below which throttle_turn spins in place.
	ThrottleEpsilon float64
}

// NewTranslator returns a Translator sending through t.
func NewTranslator(t Transport, throttleEpsilon float64) *Translator {
	return &Translator{transport: t, ThrottleEpsilon: throttleEpsilon}
}

// Wheels computes unrounded left/right speeds in pulses/s. An empty or
// unknown mode yields a stop.
func (tr *Translator) Wheels(cmd CommandedMotion, g motor.Geometry) (left, right float64) {
	switch cmd.Mode {
	case ModeSpeedTurn:
		// differential drive inverse kinematics, w converted mrad/s -> rad/s
		w := cmd.TurnRate / 1000
		half := g.TrackSpan / 2
		left = cmd.Speed*g.GainLeft - w*half*g.GainLeft
		right = cmd.Speed*g.GainRight + w*half*g.GainRight

	case ModeThrottleTurn:
		nomLeft := cmd.Throttle / 100 * g.FullSpeedLeft
		nomRight := cmd.Throttle / 100 * g.FullSpeedRight
		var diff float64
		if math.Abs(cmd.Throttle) > tr.ThrottleEpsilon {
			diff = cmd.Turn / 100 * (nomLeft + nomRight) / 2
		} else {
			diff = cmd.Turn / 100 * (g.FullSpeedLeft + g.FullSpeedRight) / 2
		}
		left = nomLeft - diff
		right = nomRight + diff

	case ModeTank:
		left = cmd.Left / 100 * g.FullSpeedLeft
		right = cmd.Right / 100 * g.FullSpeedRight
	}
	return left, right
}

// Drive computes and sends the setpoints for cmd, echoing them into status.
// When both sides are below one pulse per second the driver gets an explicit
// zero duty so it does not hold a sub-resolution speed target.
func (tr *Translator) Drive(cmd CommandedMotion, g motor.Geometry, status *motor.Status) (Setpoint, error) {
	left, right := tr.Wheels(cmd, g)

	if math.Abs(left) < 1 && math.Abs(right) < 1 {
		status.SetpointLeft, status.SetpointRight = 0, 0
		return Setpoint{}, tr.transport.SendDualDuty(0, 0)
	}

	sp := Setpoint{Left: toPulses(left), Right: toPulses(right)}
	status.SetpointLeft, status.SetpointRight = sp.Left, sp.Right
	return sp, tr.transport.SendDualSpeed(sp.Left, sp.Right)
}

// Stop sends zero duty on both channels.
func (tr *Translator) Stop(status *motor.Status) error {
	status.SetpointLeft, status.SetpointRight = 0, 0
	return tr.transport.SendDualDuty(0, 0)
}

func toPulses(v float64) int32 {
	v = math.Round(v)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
