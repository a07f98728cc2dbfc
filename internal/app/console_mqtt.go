package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/drive_computer/internal/config"
	"github.com/relabs-tech/drive_computer/internal/drive"
	"github.com/relabs-tech/drive_computer/internal/motor"
	"github.com/relabs-tech/drive_computer/internal/odometry"
)

func formatMotor(s motor.Status) string {
	line := "[MOTOR]"
	if s.VoltageValid {
		line += fmt.Sprintf(" batt=%5.1fV", s.Voltage)
	} else {
		line += " batt=  n/a"
	}
	if s.CurrentsValid {
		line += fmt.Sprintf(" I=%5.2f/%5.2fA", s.CurrentLeft, s.CurrentRight)
	}
	if s.EncodersValid {
		line += fmt.Sprintf(" enc=%d/%d", s.EncoderLeft, s.EncoderRight)
	}
	if s.SpeedsValid {
		line += fmt.Sprintf(" spd=%d/%d", s.SpeedLeft, s.SpeedRight)
	}
	line += fmt.Sprintf(" set=%d/%d", s.SetpointLeft, s.SetpointRight)
	return line
}

func formatOdometry(s odometry.State) string {
	return fmt.Sprintf("[ODOM]  v=%7.1fmm/s  w=%6.3frad/s  hdg=%6.2f°", s.GroundSpeed, s.TurnRate, s.Heading)
}

func formatLink(h drive.LinkHealth) string {
	state := "UP"
	if !h.Responding {
		state = "DOWN"
	}
	fw := h.Firmware
	if fw == "" {
		fw = "unknown"
	} else if !h.FirmwareOK {
		fw += " (unsupported)"
	}
	return fmt.Sprintf("[LINK]  %s retries=%d firmware=%s", state, h.Retries, fw)
}

// RunConsoleMQTT prints each drive status message as a line.
func RunConsoleMQTT() error {
	cfg := config.Get()

	printer := func(format func([]byte) (string, error)) mqtt.MessageHandler {
		return func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Println(line)
		}
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, func(c mqtt.Client) {
		subscribe(c, cfg.TopicMotorStatus, printer(func(b []byte) (string, error) {
			var s motor.Status
			err := json.Unmarshal(b, &s)
			return formatMotor(s), err
		}))
		subscribe(c, cfg.TopicOdometry, printer(func(b []byte) (string, error) {
			var s odometry.State
			err := json.Unmarshal(b, &s)
			return formatOdometry(s), err
		}))
		subscribe(c, cfg.TopicLinkHealth, printer(func(b []byte) (string, error) {
			var h drive.LinkHealth
			err := json.Unmarshal(b, &h)
			return formatLink(h), err
		}))
		subscribe(c, cfg.TopicCalibrationResult, printer(func(b []byte) (string, error) {
			var r drive.CalibrationResult
			err := json.Unmarshal(b, &r)
			return fmt.Sprintf("[CAL]   %dms at %.0f%%: pulses %d/%d distance %.1f/%.1fmm",
				r.ElapsedMs, r.Throttle, r.PulsesLeft, r.PulsesRight, r.DistanceLeft, r.DistanceRight), err
		}))
	})
	if err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
