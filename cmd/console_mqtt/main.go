package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/drive_computer/internal/app"
	"github.com/relabs-tech/drive_computer/internal/config"
)

func main() {
	log.Println("starting drive-computer console (MQTT subscriber)")

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("failed to read environment: %v", err)
	}
	configPath := flag.String("config", env.ConfigPath, "path to the KEY=VALUE config file")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logs := app.SetupLogging(config.Get(), env.LogFile)
	defer logs.Close()

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
