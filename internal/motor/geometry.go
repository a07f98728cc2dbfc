package motor

// Geometry describes the drive train: per-side encoder gain, the distance
// between the two drive lines and the full-throttle speed of each side.
// It is shared by the command translator and the odometry integrator.
type Geometry struct {
	GainLeft  float64 `json:"gain_left"` // pulses per mm
	GainRight float64 `json:"gain_right"`
	TrackSpan float64 `json:"track_span"` // mm

	FullSpeedLeft  float64 `json:"full_speed_left"` // pulses/s at 100% throttle
	FullSpeedRight float64 `json:"full_speed_right"`
}
