// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drive

import (
	"sync"
	"time"

	"github.com/relabs-tech/drive_computer/internal/motor"
	"github.com/relabs-tech/drive_computer/internal/odometry"
)

// Mode selects which fields of CommandedMotion are meaningful.
type Mode string

const (
	// ModeSpeedTurn commands ground speed (mm/s) and turn rate (mrad/s).
	ModeSpeedTurn Mode = "speed_turn"
	// ModeThrottleTurn commands throttle and turn as percent of full speed.
	ModeThrottleTurn Mode = "throttle_turn"
	// ModeTank commands each side's throttle in percent.
	ModeTank Mode = "tank"
)

// CommandedMotion is the latest drive intent supplied from outside the core.
// Percentages run from -100 to 100.
type CommandedMotion struct {
	Mode     Mode    `json:"mode"`
	Speed    float64 `json:"speed"`     // mm/s
	TurnRate float64 `json:"turn_rate"` // mrad/s, positive turns left
	Throttle float64 `json:"throttle"`  // %
	Turn     float64 `json:"turn"`      // %
	Left     float64 `json:"left"`      // %
	Right    float64 `json:"right"`     // %
}

// Setpoint is a pair of wheel speed targets in quadrature pulses per second.
type Setpoint struct {
	Left  int32 `json:"left"`
	Right int32 `json:"right"`
}

// LinkHealth reports whether the motor driver is answering.
type LinkHealth struct {
	Responding bool   `json:"responding"`
	Retries    int    `json:"retries"` // failed ticks since the link was last confirmed
	Firmware   string `json:"firmware,omitempty"`
	FirmwareOK bool   `json:"firmware_ok"`
}

// Snapshot is a read-only copy of everything the controller exposes.
type Snapshot struct {
	Motor       motor.Status    `json:"motor"`
	Odometry    odometry.State  `json:"odometry"`
	Link        LinkHealth      `json:"link"`
	Calibrating bool            `json:"calibrating"`
	Command     CommandedMotion `json:"command"`
	Geometry    motor.Geometry  `json:"geometry"`
}

// CommandSource provides the current drive intent once per tick.
type CommandSource interface {
	Latest() CommandedMotion
}

// CommandBox is a CommandSource fed from other goroutines (MQTT callbacks,
// the development shell).
type CommandBox struct {
	mu  sync.RWMutex
	cmd CommandedMotion
}

// Set replaces the current command.
func (b *CommandBox) Set(cmd CommandedMotion) {
	b.mu.Lock()
	b.cmd = cmd
	b.mu.Unlock()
}

// Latest returns the current command.
func (b *CommandBox) Latest() CommandedMotion {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cmd
}

// Clock is the wall clock used for odometry and calibration timing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
