// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/relabs-tech/drive_computer/internal/drive"
	"github.com/relabs-tech/drive_computer/internal/motor"
)

// calibrationRecord is the JSON file written after each calibration run.
type calibrationRecord struct {
	SchemaVersion int                     `json:"schema_version"`
	Result        drive.CalibrationResult `json:"result"`
	Geometry      motor.Geometry          `json:"geometry"` // in effect during the run
	Notes         []string                `json:"notes,omitempty"`
}

// saveCalibration writes r under dir as drive_calibration_<timestamp>.json
// and returns the path.
func saveCalibration(dir string, r drive.CalibrationResult, g motor.Geometry) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create calibration dir: %w", err)
	}

	rec := calibrationRecord{SchemaVersion: 1, Result: r, Geometry: g}
	if !r.EncodersValid {
		rec.Notes = append(rec.Notes, "encoder read failed; distances are not usable")
	}
	if r.PulsesLeft != 0 && r.PulsesRight != 0 {
		ratio := float64(r.PulsesLeft) / float64(r.PulsesRight)
		rec.Notes = append(rec.Notes, fmt.Sprintf("left/right pulse ratio %.4f", ratio))
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal calibration: %w", err)
	}

	name := fmt.Sprintf("drive_calibration_%s.json", r.Started.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write calibration: %w", err)
	}
	return path, nil
}
