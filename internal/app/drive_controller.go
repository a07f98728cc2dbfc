// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/drive_computer/internal/config"
	"github.com/relabs-tech/drive_computer/internal/drive"
	"github.com/relabs-tech/drive_computer/internal/hardware"
	"github.com/relabs-tech/drive_computer/internal/motor"
	"github.com/relabs-tech/drive_computer/internal/roboclaw"
)

// RunDriveController runs the drive loop against the motor driver (or the
// simulator) and bridges it to MQTT until SIGINT/SIGTERM.
func RunDriveController(simulated bool) error {
	cfg := config.Get()

	transport, closer, err := openTransport(cfg, simulated)
	if err != nil {
		return err
	}
	defer closer.Close()

	enable, err := hardware.OpenEnablePin(cfg.MotorEnablePin)
	if err != nil {
		return err
	}

	var client mqtt.Client
	results := make(chan calibrationOutcome, 4)
	box := &drive.CommandBox{}

	var ctrl *drive.Controller
	ctrl, err = drive.NewController(transport, box, paramsFromConfig(cfg),
		drive.WithCalibrationHandler(func(r drive.CalibrationResult) {
			// runs on the loop goroutine, so ctrl is safe to read here
			select {
			case results <- calibrationOutcome{result: r, geometry: ctrl.Geometry()}:
			default:
				log.Println("drive: calibration result dropped, writer busy")
			}
		}))
	if err != nil {
		return fmt.Errorf("drive controller: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := NewDriveLoop(ctrl, box,
		time.Duration(cfg.TickInterval)*time.Millisecond,
		time.Duration(cfg.StatusPublishInterval)*time.Millisecond,
		func(s drive.Snapshot) { publishSnapshot(client, cfg, s) })

	client, err = connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDController, func(c mqtt.Client) {
		subscribe(c, cfg.TopicDriveCommand, func(_ mqtt.Client, msg mqtt.Message) {
			cmd, err := decodeCommand(msg.Payload())
			if err != nil {
				log.Printf("drive: %v", err)
				return
			}
			loop.Command(cmd)
		})
		subscribe(c, cfg.TopicDriveCalibrate, func(_ mqtt.Client, _ mqtt.Message) {
			go func() {
				if err := loop.Do(ctx, (*drive.Controller).StartCalibration); err != nil {
					log.Printf("drive: calibration not started: %v", err)
				}
			}()
		})
	})
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	go func() {
		for out := range results {
			path, err := saveCalibration(cfg.CalibrationOutputDir, out.result, out.geometry)
			if err != nil {
				log.Printf("drive: %v", err)
			} else {
				log.Printf("drive: calibration saved to %s", path)
			}
			if err := publishJSON(client, cfg.TopicCalibrationResult, out.result); err != nil {
				log.Printf("drive: %v", err)
			}
		}
	}()

	if err := enable.Enable(); err != nil {
		return err
	}
	log.Printf("drive: running (tick %d ms, simulated=%v)", cfg.TickInterval, simulated)

	runErr := loop.Run(ctx)
	close(results)

	if err := enable.Disable(); err != nil {
		log.Printf("drive: %v", err)
	}
	log.Println("drive: shut down")
	return runErr
}

type calibrationOutcome struct {
	result   drive.CalibrationResult
	geometry motor.Geometry
}

// openTransport returns the serial driver client or, when simulated, an
// in-memory driver.
func openTransport(cfg *config.Config, simulated bool) (drive.Transport, io.Closer, error) {
	if simulated {
		log.Println("drive: using simulated motor driver")
		return roboclaw.NewSimulator((cfg.FullSpeedLeft + cfg.FullSpeedRight) / 2), io.NopCloser(nil), nil
	}

	port, err := roboclaw.OpenSerial(cfg.SerialPort, cfg.SerialBaudRate, cfg.SerialTimeoutMs)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("drive: opened %s at %d baud, address 0x%02X", cfg.SerialPort, cfg.SerialBaudRate, cfg.DriverAddress)
	return roboclaw.New(port, cfg.DriverAddress), port, nil
}

func paramsFromConfig(cfg *config.Config) drive.Params {
	return drive.Params{
		Geometry: motor.Geometry{
			GainLeft:       cfg.GainLeft,
			GainRight:      cfg.GainRight,
			TrackSpan:      cfg.TrackSpan,
			FullSpeedLeft:  cfg.FullSpeedLeft,
			FullSpeedRight: cfg.FullSpeedRight,
		},
		ChangeTolerance:       cfg.ChangeTolerance,
		ThrottleEpsilon:       cfg.ThrottleEpsilon,
		MaxCommandPreemptions: cfg.MaxCommandPreemptions,
		CalibrationThrottle:   cfg.CalibrationThrottle,
		CalibrationDuration:   time.Duration(cfg.CalibrationDuration) * time.Millisecond,
		FirmwareConstraint:    cfg.DriverFirmwareConstraint,
	}
}

// decodeCommand parses a drive command payload. Unknown modes are accepted
// and stop the motors.
func decodeCommand(payload []byte) (drive.CommandedMotion, error) {
	var cmd drive.CommandedMotion
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return drive.CommandedMotion{}, fmt.Errorf("command unmarshal: %w", err)
	}
	switch cmd.Mode {
	case drive.ModeSpeedTurn, drive.ModeThrottleTurn, drive.ModeTank:
	default:
		log.Printf("drive: unknown mode %q, motors will stop", cmd.Mode)
	}
	return cmd, nil
}

func publishSnapshot(client mqtt.Client, cfg *config.Config, s drive.Snapshot) {
	if client == nil || !client.IsConnected() {
		return
	}
	for topic, v := range map[string]any{
		cfg.TopicMotorStatus: s.Motor,
		cfg.TopicOdometry:    s.Odometry,
		cfg.TopicLinkHealth:  s.Link,
	} {
		if err := publishJSON(client, topic, v); err != nil {
			log.Printf("drive: %v", err)
		}
	}
}
