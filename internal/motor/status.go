package motor

// Status is the most recently read telemetry of the dual-channel driver.
// A value is only meaningful when its matching *Valid flag is true; each
// poll refreshes one category and leaves the rest as they were.
type Status struct {
	Voltage      float64 `json:"voltage_v"` // main supply
	VoltageValid bool    `json:"voltage_valid"`

	Temp1      float64 `json:"temp1_c"`
	Temp1Valid bool    `json:"temp1_valid"`
	Temp2      float64 `json:"temp2_c"`
	Temp2Valid bool    `json:"temp2_valid"`

	CurrentLeft   float64 `json:"current_left_a"`
	CurrentRight  float64 `json:"current_right_a"`
	CurrentsValid bool    `json:"currents_valid"`

	EncoderLeft   int32 `json:"encoder_left"` // quadrature pulses
	EncoderRight  int32 `json:"encoder_right"`
	EncodersValid bool  `json:"encoders_valid"`

	SpeedLeft   int32 `json:"speed_left"` // pulses/s
	SpeedRight  int32 `json:"speed_right"`
	SpeedsValid bool  `json:"speeds_valid"`

	// Last setpoints sent, echoed for observability.
	SetpointLeft  int32 `json:"setpoint_left"`
	SetpointRight int32 `json:"setpoint_right"`
}
