// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/drive_computer/internal/app"
	"github.com/relabs-tech/drive_computer/internal/config"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("failed to read environment: %v", err)
	}

	configPath := flag.String("config", env.ConfigPath, "path to the KEY=VALUE config file")
	simulated := flag.Bool("sim", env.Simulated, "use the simulated motor driver")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logs := app.SetupLogging(config.Get(), env.LogFile)
	defer logs.Close()

	log.Println("starting drive-computer controller")

	if err := app.RunDriveController(*simulated); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
