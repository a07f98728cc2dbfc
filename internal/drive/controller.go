// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drive

import (
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/drive_computer/internal/motor"
	"github.com/relabs-tech/drive_computer/internal/odometry"
)

// Params are the tuning values of a Controller.
type Params struct {
	Geometry        motor.Geometry
	ChangeTolerance float64
	ThrottleEpsilon float64
	// MaxCommandPreemptions caps consecutive command ticks before a poll is
	// forced. Zero lets commands starve telemetry indefinitely.
	MaxCommandPreemptions int

	CalibrationThrottle float64 // percent
	CalibrationDuration time.Duration

	FirmwareConstraint string
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithCalibrationHandler is called on the tick a calibration run completes.
func WithCalibrationHandler(fn func(CalibrationResult)) Option {
	return func(c *Controller) { c.onCalibration = fn }
}

// Controller owns the drive state and advances it one tick per Update call.
// It is not safe for concurrent use; a single loop goroutine must own it.
type Controller struct {
	transport Transport
	source    CommandSource
	clock     Clock
	logger    *log.Logger

	params   Params
	geometry motor.Geometry
	status   motor.Status

	translator  *Translator
	changes     *ChangeDetector
	poller      *Poller
	supervisor  *Supervisor
	calibration *Calibration
	odometry    *odometry.Integrator

	preemptions   int
	lastCommand   CommandedMotion
	onCalibration func(CalibrationResult)
}

// NewController wires the drive components around t and src.
func NewController(t Transport, src CommandSource, p Params, opts ...Option) (*Controller, error) {
	if err := validateGeometry(p.Geometry); err != nil {
		return nil, err
	}

	c := &Controller{
		transport: t,
		source:    src,
		clock:     systemClock{},
		logger:    log.Default(),
		params:    p,
		geometry:  p.Geometry,
		odometry:  odometry.NewIntegrator(),
	}
	for _, opt := range opts {
		opt(c)
	}

	sup, err := NewSupervisor(t, p.FirmwareConstraint, c.logger)
	if err != nil {
		return nil, err
	}
	c.supervisor = sup
	c.translator = NewTranslator(t, p.ThrottleEpsilon)
	c.changes = NewChangeDetector(p.ChangeTolerance)
	c.poller = NewPoller(t)
	c.calibration = NewCalibration(c.translator, t, p.CalibrationDuration, p.CalibrationThrottle, c.logger)

	return c, nil
}

// Update advances the drive by one tick: at most one calibration step, drive
// command or telemetry read, then link supervision and odometry.
func (c *Controller) Update() {
	now := c.clock.Now()
	cmd := c.source.Latest()
	resend := false

	var err error
	changed := c.changes.Changed(cmd)

	switch {
	case c.calibration.TestInProgress():
		var done bool
		var result CalibrationResult
		done, result, err = c.calibration.Step(now, c.geometry, &c.status)
		if done {
			resend = true
			c.preemptions = 0
			if c.onCalibration != nil {
				c.onCalibration(result)
			}
		}

	case changed && !c.capped():
		_, err = c.translator.Drive(cmd, c.geometry, &c.status)
		c.preemptions++
		if err != nil {
			resend = true
		}

	default:
		if changed {
			// deferred by the preemption cap, sent next tick
			resend = true
		}
		c.preemptions = 0
		_, err = c.poller.Poll(&c.status)
	}

	if c.supervisor.Record(err) {
		resend = true
	}

	c.odometry.Integrate(float64(c.status.SpeedLeft), float64(c.status.SpeedRight), c.geometry, now)

	c.changes.Remember(cmd)
	if resend {
		c.changes.Force()
	}
	c.lastCommand = cmd
}

func (c *Controller) capped() bool {
	return c.params.MaxCommandPreemptions > 0 && c.preemptions >= c.params.MaxCommandPreemptions
}

// StartCalibration begins a calibration run. It counts as the tick's
// transport operation for link supervision.
func (c *Controller) StartCalibration() error {
	if c.calibration.TestInProgress() {
		return ErrCalibrationActive
	}
	err := c.calibration.Start(c.clock.Now(), c.geometry, &c.status)
	c.supervisor.Record(err)
	return err
}

// Stop sends zero duty to both motors, used on shutdown.
func (c *Controller) Stop() error {
	return c.translator.Stop(&c.status)
}

// TestInProgress reports whether a calibration run owns the motors.
func (c *Controller) TestInProgress() bool {
	return c.calibration.TestInProgress()
}

// Status returns a copy of the motor telemetry.
func (c *Controller) Status() motor.Status {
	return c.status
}

// Odometry returns a copy of the odometry state.
func (c *Controller) Odometry() odometry.State {
	return c.odometry.State()
}

// Link returns the link health.
func (c *Controller) Link() LinkHealth {
	return c.supervisor.Health()
}

// Geometry returns the geometry in use.
func (c *Controller) Geometry() motor.Geometry {
	return c.geometry
}

// SetGeometry replaces the geometry, typically with values derived from a
// calibration run. The current command is resent with the new geometry.
func (c *Controller) SetGeometry(g motor.Geometry) error {
	if err := validateGeometry(g); err != nil {
		return err
	}
	c.geometry = g
	c.changes.Force()
	return nil
}

// SetHeading resets the integrated heading.
func (c *Controller) SetHeading(deg float64) {
	c.odometry.SetHeading(deg)
}

// Snapshot copies all exposed state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Motor:       c.status,
		Odometry:    c.odometry.State(),
		Link:        c.supervisor.Health(),
		Calibrating: c.calibration.TestInProgress(),
		Command:     c.lastCommand,
		Geometry:    c.geometry,
	}
}

func validateGeometry(g motor.Geometry) error {
	if g.GainLeft <= 0 || g.GainRight <= 0 {
		return fmt.Errorf("geometry: gains must be > 0 (left %v, right %v)", g.GainLeft, g.GainRight)
	}
	if g.TrackSpan <= 0 {
		return fmt.Errorf("geometry: track span must be > 0, got %v", g.TrackSpan)
	}
	if g.FullSpeedLeft <= 0 || g.FullSpeedRight <= 0 {
		return fmt.Errorf("geometry: full speeds must be > 0 (left %v, right %v)", g.FullSpeedLeft, g.FullSpeedRight)
	}
	return nil
}
