// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package roboclaw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Packet serial command numbers.
const (
	cmdResetEncoders = 20
	cmdGetVersion    = 21
	cmdGetMainBatt   = 24
	cmdMixedDuty     = 34
	cmdMixedSpeed    = 37
	cmdGetCurrents   = 49
	cmdGetEncoders   = 78
	cmdGetTemp       = 82
	cmdGetTemp2      = 83
	cmdGetSpeeds     = 108

	ack           = 0xFF
	maxVersionLen = 48
	drainLimit    = 32
)

var (
	ErrCRC           = errors.New("roboclaw: crc mismatch")
	ErrNoAck         = errors.New("roboclaw: command not acknowledged")
	ErrShortResponse = errors.New("roboclaw: short response")
)

// Client speaks packet serial to one driver address. Each call is a single
// request/response exchange on the port.
type Client struct {
	mu      sync.Mutex
	port    io.ReadWriter
	address byte
}

// New returns a client for the driver at address on port. The port must
// return from Read after its own timeout when no data arrives.
func New(port io.ReadWriter, address byte) *Client {
	return &Client{port: port, address: address}
}

// ReadVoltage returns the main battery voltage in volts.
func (c *Client) ReadVoltage() (float64, error) {
	data, err := c.read(cmdGetMainBatt, 2)
	if err != nil {
		return 0, fmt.Errorf("read voltage: %w", err)
	}
	return float64(binary.BigEndian.Uint16(data)) / 10, nil
}

// ReadTemperature returns sensor 1 or 2 in °C.
func (c *Client) ReadTemperature(channel int) (float64, error) {
	cmd := byte(cmdGetTemp)
	switch channel {
	case 1:
	case 2:
		cmd = cmdGetTemp2
	default:
		return 0, fmt.Errorf("read temperature: no sensor %d", channel)
	}
	data, err := c.read(cmd, 2)
	if err != nil {
		return 0, fmt.Errorf("read temperature %d: %w", channel, err)
	}
	return float64(int16(binary.BigEndian.Uint16(data))) / 10, nil
}

// ReadCurrents returns both motor currents in amps.
func (c *Client) ReadCurrents() (float64, float64, error) {
	data, err := c.read(cmdGetCurrents, 4)
	if err != nil {
		return 0, 0, fmt.Errorf("read currents: %w", err)
	}
	left := float64(int16(binary.BigEndian.Uint16(data[0:2]))) / 100
	right := float64(int16(binary.BigEndian.Uint16(data[2:4]))) / 100
	return left, right, nil
}

// ReadEncoders returns both encoder counts.
func (c *Client) ReadEncoders() (int32, int32, error) {
	data, err := c.read(cmdGetEncoders, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("read encoders: %w", err)
	}
	return int32(binary.BigEndian.Uint32(data[0:4])), int32(binary.BigEndian.Uint32(data[4:8])), nil
}

// ReadSpeeds returns both motor speeds in pulses/s.
func (c *Client) ReadSpeeds() (int32, int32, error) {
	data, err := c.read(cmdGetSpeeds, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("read speeds: %w", err)
	}
	return int32(binary.BigEndian.Uint32(data[0:4])), int32(binary.BigEndian.Uint32(data[4:8])), nil
}

// SendDualSpeed commands both channels' speed in pulses/s.
func (c *Client) SendDualSpeed(left, right int32) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[0:4], uint32(left))
	binary.BigEndian.PutUint32(data[4:8], uint32(right))
	if err := c.write(cmdMixedSpeed, data); err != nil {
		return fmt.Errorf("send speed %d/%d: %w", left, right, err)
	}
	return nil
}

// SendDualDuty commands both channels' duty cycle, ±32767 for full scale.
func (c *Client) SendDualDuty(left, right int16) error {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], uint16(left))
	binary.BigEndian.PutUint16(data[2:4], uint16(right))
	if err := c.write(cmdMixedDuty, data); err != nil {
		return fmt.Errorf("send duty %d/%d: %w", left, right, err)
	}
	return nil
}

// ResetEncoders zeroes both encoder counts.
func (c *Client) ResetEncoders() error {
	if err := c.write(cmdResetEncoders, nil); err != nil {
		return fmt.Errorf("reset encoders: %w", err)
	}
	return nil
}

// ReadVersion returns the firmware banner, e.g. "USB Roboclaw 2x15a v4.1.34".
func (c *Client) ReadVersion() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := []byte{c.address, cmdGetVersion}
	if _, err := c.port.Write(req); err != nil {
		return "", fmt.Errorf("read version: %w", err)
	}

	text := make([]byte, 0, maxVersionLen)
	b := make([]byte, 1)
	for {
		if _, err := io.ReadFull(c.port, b); err != nil {
			return "", fmt.Errorf("read version: %w", ErrShortResponse)
		}
		text = append(text, b[0])
		if b[0] == 0 {
			break
		}
		if len(text) >= maxVersionLen {
			return "", fmt.Errorf("read version: unterminated banner")
		}
	}

	if err := c.checkCRC(req, text); err != nil {
		return "", fmt.Errorf("read version: %w", err)
	}
	return strings.TrimSpace(string(text[:len(text)-1])), nil
}

// Drain discards whatever is left in the receive buffer, stopping at the
// first read that times out.
func (c *Client) Drain() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := make([]byte, 64)
	for i := 0; i < drainLimit; i++ {
		n, err := c.port.Read(buf)
		if err == io.EOF || (err == nil && n == 0) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("drain: %w", err)
		}
	}
	return nil
}

func (c *Client) read(cmd byte, n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := []byte{c.address, cmd}
	if _, err := c.port.Write(req); err != nil {
		return nil, err
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(c.port, data); err != nil {
		return nil, ErrShortResponse
	}
	if err := c.checkCRC(req, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) write(cmd byte, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pkt := make([]byte, 0, len(data)+4)
	pkt = append(pkt, c.address, cmd)
	pkt = append(pkt, data...)
	pkt = binary.BigEndian.AppendUint16(pkt, crc16(pkt))
	if _, err := c.port.Write(pkt); err != nil {
		return err
	}

	b := make([]byte, 1)
	if _, err := io.ReadFull(c.port, b); err != nil {
		return ErrNoAck
	}
	if b[0] != ack {
		return fmt.Errorf("%w: got 0x%02X", ErrNoAck, b[0])
	}
	return nil
}

// checkCRC reads the two CRC bytes following a response and compares them
// with the CRC over request and response payload.
func (c *Client) checkCRC(req, data []byte) error {
	sum := make([]byte, 2)
	if _, err := io.ReadFull(c.port, sum); err != nil {
		return ErrShortResponse
	}
	if binary.BigEndian.Uint16(sum) != crc16(req, data) {
		return ErrCRC
	}
	return nil
}
