package roboclaw

import (
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"
)

// OpenSerial opens the driver's serial port in 8N1 with a read timeout so a
// missing reply surfaces as an error instead of blocking the tick.
func OpenSerial(portName string, baudRate, timeoutMs int) (io.ReadWriteCloser, error) {
	// the driver works in tenths of a second
	if timeoutMs < 100 {
		timeoutMs = 100
	}
	timeoutMs = (timeoutMs + 99) / 100 * 100

	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(timeoutMs),
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	return port, nil
}
