// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Serial link to the motor driver
	SerialPort               string
	SerialBaudRate           int
	SerialTimeoutMs          int  // read timeout, rounded up to 100ms by the serial driver
	DriverAddress            byte // packet-serial address, 0x80..0x87
	DriverFirmwareConstraint string

	// MQTT
	MQTTBroker             string
	MQTTClientIDController string
	MQTTClientIDWeb        string
	MQTTClientIDConsole    string

	// Topics
	TopicDriveCommand      string
	TopicDriveCalibrate    string
	TopicMotorStatus       string
	TopicOdometry          string
	TopicLinkHealth        string
	TopicCalibrationResult string

	// Timing
	TickInterval          int // milliseconds
	StatusPublishInterval int // milliseconds

	// Geometry
	GainLeft       float64 // encoder pulses per mm
	GainRight      float64
	TrackSpan      float64 // mm between drive lines
	FullSpeedLeft  float64 // pulses/s at 100% throttle
	FullSpeedRight float64

	// Control
	ChangeTolerance       float64
	ThrottleEpsilon       float64
	MaxCommandPreemptions int // 0 = never force a poll

	// Calibration
	CalibrationThrottle  float64 // percent
	CalibrationDuration  int     // milliseconds
	CalibrationOutputDir string

	// Hardware
	MotorEnablePin string // empty disables the enable output

	// Web Server
	WebServerPort int

	// Logging
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns a Config populated with the values used when a key is
// absent from the configuration file.
func Defaults() *Config {
	return &Config{
		SerialPort:               "/dev/ttyACM0",
		SerialBaudRate:           38400,
		SerialTimeoutMs:          100,
		DriverAddress:            0x80,
		DriverFirmwareConstraint: ">=4.1.0",

		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientIDController: "drive-controller",
		MQTTClientIDWeb:        "drive-web-subscriber",
		MQTTClientIDConsole:    "drive-console-subscriber",

		TopicDriveCommand:      "drive/command",
		TopicDriveCalibrate:    "drive/calibrate",
		TopicMotorStatus:       "drive/motor",
		TopicOdometry:          "drive/odometry",
		TopicLinkHealth:        "drive/link",
		TopicCalibrationResult: "drive/calibration",

		TickInterval:          50,
		StatusPublishInterval: 250,

		GainLeft:       5.0,
		GainRight:      5.0,
		TrackSpan:      380.0,
		FullSpeedLeft:  7500,
		FullSpeedRight: 7500,

		ChangeTolerance:       0.10,
		ThrottleEpsilon:       1.0,
		MaxCommandPreemptions: 0,

		CalibrationThrottle:  10,
		CalibrationDuration:  5000,
		CalibrationOutputDir: "./calibration",

		WebServerPort: 8080,

		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		LogMaxAgeDays: 28,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Defaults().
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate
	case "SERIAL_TIMEOUT_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_TIMEOUT_MS %q: %w", value, err)
		}
		c.SerialTimeoutMs = ms
	case "DRIVER_ADDRESS":
		addr, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid DRIVER_ADDRESS %q: %w", value, err)
		}
		if addr < 0x80 || addr > 0x87 {
			return fmt.Errorf("DRIVER_ADDRESS must be 0x80-0x87, got 0x%X", addr)
		}
		c.DriverAddress = byte(addr)
	case "DRIVER_FIRMWARE_CONSTRAINT":
		c.DriverFirmwareConstraint = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CONTROLLER":
		c.MQTTClientIDController = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_DRIVE_COMMAND":
		c.TopicDriveCommand = value
	case "TOPIC_DRIVE_CALIBRATE":
		c.TopicDriveCalibrate = value
	case "TOPIC_MOTOR_STATUS":
		c.TopicMotorStatus = value
	case "TOPIC_ODOMETRY":
		c.TopicOdometry = value
	case "TOPIC_LINK_HEALTH":
		c.TopicLinkHealth = value
	case "TOPIC_CALIBRATION_RESULT":
		c.TopicCalibrationResult = value

	// Timing
	case "TICK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL %q: %w", value, err)
		}
		c.TickInterval = interval
	case "STATUS_PUBLISH_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STATUS_PUBLISH_INTERVAL %q: %w", value, err)
		}
		c.StatusPublishInterval = interval

	// Geometry
	case "GAIN_LEFT":
		return parsePositive(key, value, &c.GainLeft)
	case "GAIN_RIGHT":
		return parsePositive(key, value, &c.GainRight)
	case "TRACK_SPAN":
		return parsePositive(key, value, &c.TrackSpan)
	case "FULL_SPEED_LEFT":
		return parsePositive(key, value, &c.FullSpeedLeft)
	case "FULL_SPEED_RIGHT":
		return parsePositive(key, value, &c.FullSpeedRight)

	// Control
	case "CHANGE_TOLERANCE":
		return parsePositive(key, value, &c.ChangeTolerance)
	case "THROTTLE_EPSILON":
		return parsePositive(key, value, &c.ThrottleEpsilon)
	case "MAX_COMMAND_PREEMPTIONS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAX_COMMAND_PREEMPTIONS %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("MAX_COMMAND_PREEMPTIONS must be >= 0, got %d", n)
		}
		c.MaxCommandPreemptions = n

	// Calibration
	case "CALIBRATION_THROTTLE":
		pct, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_THROTTLE %q: %w", value, err)
		}
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("CALIBRATION_THROTTLE must be in (0, 100], got %v", pct)
		}
		c.CalibrationThrottle = pct
	case "CALIBRATION_DURATION":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_DURATION %q: %w", value, err)
		}
		c.CalibrationDuration = ms
	case "CALIBRATION_OUTPUT_DIR":
		c.CalibrationOutputDir = value

	// Hardware
	case "MOTOR_ENABLE_PIN":
		c.MotorEnablePin = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Logging
	case "LOG_FILE":
		c.LogFile = value
	case "LOG_MAX_SIZE_MB":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_MAX_SIZE_MB %q: %w", value, err)
		}
		c.LogMaxSizeMB = n
	case "LOG_MAX_BACKUPS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_MAX_BACKUPS %q: %w", value, err)
		}
		c.LogMaxBackups = n
	case "LOG_MAX_AGE_DAYS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_MAX_AGE_DAYS %q: %w", value, err)
		}
		c.LogMaxAgeDays = n

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parsePositive(key, value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be > 0, got %v", key, v)
	}
	*dst = v
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required")
	}
	if c.SerialBaudRate == 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE is required")
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicDriveCommand == "" {
		return fmt.Errorf("TOPIC_DRIVE_COMMAND is required")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be > 0")
	}
	if c.StatusPublishInterval <= 0 {
		return fmt.Errorf("STATUS_PUBLISH_INTERVAL must be > 0")
	}
	if c.CalibrationDuration <= 0 {
		return fmt.Errorf("CALIBRATION_DURATION must be > 0")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
