// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Env carries the process-level settings read from the environment before
// the configuration file is located.
type Env struct {
	ConfigPath string `env:"DRIVE_CONFIG" envDefault:"./drive_config.txt"`
	Simulated  bool   `env:"DRIVE_SIMULATED" envDefault:"false"`
	LogFile    string `env:"DRIVE_LOG_FILE"`
}

// LoadEnv parses the DRIVE_* environment variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}
