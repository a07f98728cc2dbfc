package main

import (
	"flag"
	"log"
	"time"

	"github.com/relabs-tech/drive_computer/internal/app"
	"github.com/relabs-tech/drive_computer/internal/config"
)

func main() {
	log.Println("starting drive-computer MQTT command producer (bench sweep)")

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("failed to read environment: %v", err)
	}
	configPath := flag.String("config", env.ConfigPath, "path to the KEY=VALUE config file")
	amplitude := flag.Float64("amplitude", 20, "peak throttle in percent")
	interval := flag.Duration("interval", 200*time.Millisecond, "publish interval")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logs := app.SetupLogging(config.Get(), env.LogFile)
	defer logs.Close()

	if err := app.RunCommandProducer(*amplitude, *interval); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
