package drive

// Transport is the framed request/response interface to the dual-channel
// motor driver. Channel 1 is the left side, channel 2 the right. Every call
// is a single blocking exchange; a malformed or short reply is an error.
type Transport interface {
	ReadVoltage() (float64, error)
	// ReadTemperature reads sensor 1 or 2.
	ReadTemperature(channel int) (float64, error)
	ReadCurrents() (left, right float64, err error)
	ReadEncoders() (left, right int32, err error)
	ReadSpeeds() (left, right int32, err error)
	SendDualSpeed(left, right int32) error
	SendDualDuty(left, right int16) error
	ResetEncoders() error
	ReadVersion() (string, error)
	// Drain discards unread bytes in the receive buffer.
	Drain() error
}
