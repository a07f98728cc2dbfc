// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drive

import (
	"fmt"
	"log"
	"regexp"

	"github.com/Masterminds/semver"
)

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// Supervisor keeps LinkHealth from the outcome of each tick's transport
// operation. A failure, or a link not yet confirmed, costs one drain plus one
// version probe per tick; nothing is retried within a tick.
type Supervisor struct {
	transport  Transport
	logger     *log.Logger
	constraint *semver.Constraints
	required   string

	health LinkHealth
	lost   bool
}

// NewSupervisor returns a supervisor for t. constraint is a semver range the
// driver firmware must satisfy; empty accepts any version.
func NewSupervisor(t Transport, constraint string, logger *log.Logger) (*Supervisor, error) {
	s := &Supervisor{transport: t, logger: logger}
	if constraint != "" {
		c, err := semver.NewConstraint(constraint)
		if err != nil {
			return nil, fmt.Errorf("firmware constraint %q: %w", constraint, err)
		}
		s.constraint = c
		s.required = constraint
	}
	return s, nil
}

// Health returns the current link state.
func (s *Supervisor) Health() LinkHealth {
	return s.health
}

// Record takes the result of this tick's operation. It returns true when the
// probe brought back a link that had been lost, so the caller can resend.
func (s *Supervisor) Record(opErr error) bool {
	if opErr == nil && s.health.Responding {
		return false
	}

	if opErr != nil {
		if s.health.Responding {
			s.logger.Printf("drive: link failure: %v", opErr)
		}
		s.health.Responding = false
		s.lost = true
	}
	s.health.Retries++

	if err := s.transport.Drain(); err != nil {
		s.logger.Printf("drive: drain receive buffer: %v", err)
	}

	version, err := s.transport.ReadVersion()
	if err != nil {
		if s.health.Retries == 1 || s.health.Retries%100 == 0 {
			s.logger.Printf("drive: resync probe failed (attempt %d): %v", s.health.Retries, err)
		}
		return false
	}

	s.health.Responding = true
	s.logger.Printf("drive: link up after %d attempt(s), driver %q", s.health.Retries, version)
	s.health.Retries = 0
	s.checkFirmware(version)

	restored := s.lost
	s.lost = false
	return restored
}

func (s *Supervisor) checkFirmware(version string) {
	s.health.Firmware = version
	if s.constraint == nil {
		s.health.FirmwareOK = true
		return
	}

	m := versionPattern.FindStringSubmatch(version)
	if m == nil {
		s.health.FirmwareOK = false
		s.logger.Printf("drive: no version number in driver reply %q", version)
		return
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		s.health.FirmwareOK = false
		s.logger.Printf("drive: parse driver version %q: %v", m[1], err)
		return
	}

	s.health.FirmwareOK = s.constraint.Check(v)
	if !s.health.FirmwareOK {
		s.logger.Printf("drive: WARNING driver firmware %s does not satisfy %s", v, s.required)
	}
}
