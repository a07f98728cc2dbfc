// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drive

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/drive_computer/internal/motor"
)

// ErrCalibrationActive is returned when a run is requested while one is in progress.
var ErrCalibrationActive = errors.New("calibration already in progress")

// CalibrationResult is the outcome of one open-loop test drive. Distances use
// the gains in effect during the run; the raw pulse counts are what a new
// geometry should be derived from.
type CalibrationResult struct {
	Started       time.Time `json:"started"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	Throttle      float64   `json:"throttle"`
	EncodersValid bool      `json:"encoders_valid"`
	PulsesLeft    int32     `json:"pulses_left"`
	PulsesRight   int32     `json:"pulses_right"`
	SpeedLeft     float64   `json:"speed_left"` // pulses/s
	SpeedRight    float64   `json:"speed_right"`
	DistanceLeft  float64   `json:"distance_left_mm"`
	DistanceRight float64   `json:"distance_right_mm"`
}

// Calibration runs a fixed-throttle straight drive for a fixed time, then
// reports how far each side travelled. It is advanced by Step once per tick
// and never blocks.
type Calibration struct {
	translator *Translator
	transport  Transport
	logger     *log.Logger

	Duration time.Duration
	Throttle float64 // percent

	active  bool
	started time.Time
	pending *CalibrationResult
}

// NewCalibration returns an idle sequencer.
func NewCalibration(tr *Translator, t Transport, duration time.Duration, throttle float64, logger *log.Logger) *Calibration {
	return &Calibration{
		translator: tr,
		transport:  t,
		logger:     logger,
		Duration:   duration,
		Throttle:   throttle,
	}
}

// TestInProgress reports whether a run owns the motors.
func (c *Calibration) TestInProgress() bool {
	return c.active
}

// Start clears both encoders and commands the test throttle straight ahead.
func (c *Calibration) Start(now time.Time, g motor.Geometry, status *motor.Status) error {
	if c.active {
		return ErrCalibrationActive
	}
	if err := c.transport.ResetEncoders(); err != nil {
		return fmt.Errorf("calibration reset encoders: %w", err)
	}

	cmd := CommandedMotion{Mode: ModeThrottleTurn, Throttle: c.Throttle}
	if _, err := c.translator.Drive(cmd, g, status); err != nil {
		return fmt.Errorf("calibration drive: %w", err)
	}

	c.active = true
	c.started = now
	c.pending = nil
	c.logger.Printf("drive: calibration started, throttle %.1f%% for %s", c.Throttle, c.Duration)
	return nil
}

// Step checks the clock and, once the duration has elapsed, measures the
// encoders and stops the motors. The run ends only after the stop is sent;
// a failed stop is retried next tick with the same measurement. done is true
// on the tick the run ends.
func (c *Calibration) Step(now time.Time, g motor.Geometry, status *motor.Status) (done bool, result CalibrationResult, err error) {
	if !c.active {
		return false, CalibrationResult{}, nil
	}

	elapsed := now.Sub(c.started)
	if elapsed < c.Duration {
		return false, CalibrationResult{}, nil
	}

	var readErr error
	if c.pending == nil {
		r := CalibrationResult{
			Started:   c.started,
			ElapsedMs: elapsed.Milliseconds(),
			Throttle:  c.Throttle,
		}
		left, right, e := c.transport.ReadEncoders()
		if e != nil {
			readErr = fmt.Errorf("calibration read encoders: %w", e)
			status.EncodersValid = false
			c.logger.Printf("drive: %v", readErr)
		} else {
			secs := elapsed.Seconds()
			r.EncodersValid = true
			r.PulsesLeft, r.PulsesRight = left, right
			r.SpeedLeft = float64(left) / secs
			r.SpeedRight = float64(right) / secs
			r.DistanceLeft = float64(left) / g.GainLeft
			r.DistanceRight = float64(right) / g.GainRight
			status.EncoderLeft, status.EncoderRight = left, right
			status.EncodersValid = true

			c.logger.Printf("drive: calibration %d ms: left %d pulses (%.1f mm, %.1f p/s), right %d pulses (%.1f mm, %.1f p/s)",
				r.ElapsedMs, left, r.DistanceLeft, r.SpeedLeft, right, r.DistanceRight, r.SpeedRight)
		}
		c.pending = &r
	}

	if err := c.translator.Stop(status); err != nil {
		return false, CalibrationResult{}, fmt.Errorf("calibration stop: %w", err)
	}

	result = *c.pending
	c.active = false
	c.pending = nil
	return true, result, readErr
}
