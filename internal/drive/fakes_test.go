package drive

import (
	"errors"
	"io"
	"log"
	"time"
)

var errLinkDown = errors.New("link down")

// fakeTransport records every call and fails the ones named in fail.
type fakeTransport struct {
	calls []string
	fail  map[string]bool

	voltage            float64
	temp1, temp2       float64
	currentL, currentR float64
	encoderL, encoderR int32
	speedL, speedR     int32
	version            string
	speeds             []Setpoint
	duties             int
	resets             int
	drains             int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		fail:     map[string]bool{},
		voltage:  24.5,
		temp1:    31.2,
		temp2:    29.8,
		currentL: 1.5,
		currentR: 1.25,
		encoderL: 1000,
		encoderR: 1200,
		speedL:   400,
		speedR:   420,
		version:  "USB Roboclaw 2x15a v4.1.34\n",
	}
}

func (f *fakeTransport) call(name string) error {
	f.calls = append(f.calls, name)
	if f.fail[name] || f.fail["*"] {
		return errLinkDown
	}
	return nil
}

func (f *fakeTransport) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeTransport) ReadVoltage() (float64, error) {
	return f.voltage, f.call("voltage")
}

func (f *fakeTransport) ReadTemperature(channel int) (float64, error) {
	if channel == 1 {
		return f.temp1, f.call("temp1")
	}
	return f.temp2, f.call("temp2")
}

func (f *fakeTransport) ReadCurrents() (float64, float64, error) {
	return f.currentL, f.currentR, f.call("currents")
}

func (f *fakeTransport) ReadEncoders() (int32, int32, error) {
	return f.encoderL, f.encoderR, f.call("encoders")
}

func (f *fakeTransport) ReadSpeeds() (int32, int32, error) {
	return f.speedL, f.speedR, f.call("speeds")
}

func (f *fakeTransport) SendDualSpeed(left, right int32) error {
	if err := f.call("speed"); err != nil {
		return err
	}
	f.speeds = append(f.speeds, Setpoint{Left: left, Right: right})
	return nil
}

func (f *fakeTransport) SendDualDuty(left, right int16) error {
	if err := f.call("duty"); err != nil {
		return err
	}
	f.duties++
	return nil
}

func (f *fakeTransport) ResetEncoders() error {
	if err := f.call("reset"); err != nil {
		return err
	}
	f.resets++
	return nil
}

func (f *fakeTransport) ReadVersion() (string, error) {
	return f.version, f.call("version")
}

func (f *fakeTransport) Drain() error {
	f.drains++
	f.calls = append(f.calls, "drain")
	return nil
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
