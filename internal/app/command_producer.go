package app

import (
	"context"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/drive_computer/internal/config"
	"github.com/relabs-tech/drive_computer/internal/drive"
)

// sweepCommand is a bench exercise pattern: throttle swings between
// -amplitude and amplitude with a slower turn oscillation on top.
func sweepCommand(elapsed time.Duration, amplitude float64) drive.CommandedMotion {
	s := elapsed.Seconds()
	return drive.CommandedMotion{
		Mode:     drive.ModeThrottleTurn,
		Throttle: math.Round(amplitude*math.Sin(s*0.5)*10) / 10,
		Turn:     math.Round(amplitude*0.5*math.Sin(s*0.2)*10) / 10,
	}
}

// RunCommandProducer publishes sweepCommand on the drive command topic every
// interval, then a stop command on exit.
func RunCommandProducer(amplitude float64, interval time.Duration) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDController+"-producer", nil)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Println("producer: sending stop")
			return publishJSON(client, cfg.TopicDriveCommand, drive.CommandedMotion{Mode: drive.ModeThrottleTurn})
		case t := <-ticker.C:
			cmd := sweepCommand(t.Sub(start), amplitude)
			if err := publishJSON(client, cfg.TopicDriveCommand, cmd); err != nil {
				log.Printf("producer: %v", err)
				continue
			}
			log.Printf("%s published command: %+v", t.Format(time.RFC3339), cmd)
		}
	}
}
