// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package roboclaw

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrSimulatedFault is returned by a Simulator while it is down or when a
// random fault is injected.
var ErrSimulatedFault = errors.New("roboclaw: simulated link fault")

const (
	simTimeConstant = 0.2 // seconds for the wheels to reach ~63% of a new target
	simAmpsAtFull   = 4.0
)

// Simulator stands in for a driver on the bench: commanded speeds approach
// their targets with a first-order lag and integrate into the encoders.
type Simulator struct {
	mu  sync.Mutex
	now func() time.Time
	rng *rand.Rand

	// FullSpeed converts duty commands to pulses/s.
	FullSpeed float64
	// FailRate is the probability that any exchange fails.
	FailRate float64
	Version  string
	Voltage  float64
	Temp1    float64
	Temp2    float64

	down                    bool
	last                    time.Time
	targetLeft, targetRight float64
	speedLeft, speedRight   float64
	encLeft, encRight       float64
}

// NewSimulator returns a healthy simulator using the wall clock.
func NewSimulator(fullSpeed float64) *Simulator {
	return NewSimulatorWithClock(fullSpeed, time.Now)
}

// NewSimulatorWithClock uses now as its time source.
func NewSimulatorWithClock(fullSpeed float64, now func() time.Time) *Simulator {
	return &Simulator{
		now:       now,
		rng:       rand.New(rand.NewSource(1)),
		FullSpeed: fullSpeed,
		Version:   "Simulated Roboclaw 2x15a v4.1.34",
		Voltage:   24.0,
		Temp1:     28.0,
		Temp2:     27.5,
		last:      now(),
	}
}

// SetDown makes every exchange fail until called with false.
func (s *Simulator) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// exchange advances the physics and decides whether this exchange fails.
func (s *Simulator) exchange() error {
	now := s.now()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	if dt > 0 {
		k := 1 - math.Exp(-dt/simTimeConstant)
		prevLeft, prevRight := s.speedLeft, s.speedRight
		s.speedLeft += (s.targetLeft - s.speedLeft) * k
		s.speedRight += (s.targetRight - s.speedRight) * k
		s.encLeft += (prevLeft + s.speedLeft) / 2 * dt
		s.encRight += (prevRight + s.speedRight) / 2 * dt
	}

	if s.down {
		return ErrSimulatedFault
	}
	if s.FailRate > 0 && s.rng.Float64() < s.FailRate {
		return ErrSimulatedFault
	}
	return nil
}

// ReadVoltage returns the configured supply voltage.
func (s *Simulator) ReadVoltage() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Voltage, s.exchange()
}

// ReadTemperature returns Temp2 for channel 2 and Temp1 otherwise.
func (s *Simulator) ReadTemperature(channel int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel == 2 {
		return s.Temp2, s.exchange()
	}
	return s.Temp1, s.exchange()
}

// ReadCurrents scales each wheel's speed to a current draw.
func (s *Simulator) ReadCurrents() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.exchange()
	if s.FullSpeed <= 0 {
		return 0, 0, err
	}
	return math.Abs(s.speedLeft) / s.FullSpeed * simAmpsAtFull,
		math.Abs(s.speedRight) / s.FullSpeed * simAmpsAtFull, err
}

// ReadEncoders returns the integrated encoder counts.
func (s *Simulator) ReadEncoders() (int32, int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.exchange()
	return int32(math.Round(s.encLeft)), int32(math.Round(s.encRight)), err
}

// ReadSpeeds returns the lagged wheel speeds in pulses/s.
func (s *Simulator) ReadSpeeds() (int32, int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.exchange()
	return int32(math.Round(s.speedLeft)), int32(math.Round(s.speedRight)), err
}

// SendDualSpeed sets both wheel speed targets in pulses/s.
func (s *Simulator) SendDualSpeed(left, right int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.exchange(); err != nil {
		return err
	}
	s.targetLeft, s.targetRight = float64(left), float64(right)
	return nil
}

// SendDualDuty sets both targets from duty, ±32767 being FullSpeed.
func (s *Simulator) SendDualDuty(left, right int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.exchange(); err != nil {
		return err
	}
	s.targetLeft = float64(left) / math.MaxInt16 * s.FullSpeed
	s.targetRight = float64(right) / math.MaxInt16 * s.FullSpeed
	return nil
}

// ResetEncoders zeroes both encoder counts.
func (s *Simulator) ResetEncoders() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.exchange(); err != nil {
		return err
	}
	s.encLeft, s.encRight = 0, 0
	return nil
}

// ReadVersion returns the Version banner.
func (s *Simulator) ReadVersion() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Version, s.exchange()
}

// Drain has nothing to discard.
func (s *Simulator) Drain() error {
	return nil
}
