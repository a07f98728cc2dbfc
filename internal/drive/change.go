package drive

import "math"

// DefaultTolerance is the absolute difference that counts as a new command.
const DefaultTolerance = 0.10

// toleranceSlack absorbs float error so a step of exactly the tolerance
// (0.1 often lands as 0.0999...) still counts.
const toleranceSlack = 1e-9

// ChangeDetector decides whether the commanded motion moved far enough from
// the previous tick's value to be worth a drive command. Differences are
// absolute so small commands near zero stay stable.
type ChangeDetector struct {
	Tolerance float64

	last   CommandedMotion
	primed bool
	forced bool
}

// NewChangeDetector returns a detector that reports a change on its first call.
func NewChangeDetector(tolerance float64) *ChangeDetector {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &ChangeDetector{Tolerance: tolerance}
}

// Changed reports whether cur must be sent.
func (d *ChangeDetector) Changed(cur CommandedMotion) bool {
	if !d.primed || d.forced {
		return true
	}
	if cur.Mode != d.last.Mode {
		return true
	}

	switch cur.Mode {
	case ModeSpeedTurn:
		return d.moved(cur.Speed, d.last.Speed) || d.moved(cur.TurnRate, d.last.TurnRate)
	case ModeThrottleTurn:
		return d.moved(cur.Throttle, d.last.Throttle) || d.moved(cur.Turn, d.last.Turn)
	case ModeTank:
		return d.moved(cur.Left, d.last.Left) || d.moved(cur.Right, d.last.Right)
	}
	return false
}

// Remember snapshots cur as the last-cycle command and clears any forced resend.
func (d *ChangeDetector) Remember(cur CommandedMotion) {
	d.last = cur
	d.primed = true
	d.forced = false
}

// Force makes the next Changed call report true regardless of the command.
func (d *ChangeDetector) Force() {
	d.forced = true
}

func (d *ChangeDetector) moved(a, b float64) bool {
	return math.Abs(a-b) >= d.Tolerance-toleranceSlack
}
