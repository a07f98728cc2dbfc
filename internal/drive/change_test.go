package drive

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestChangeDetector(t *testing.T) {
	Convey("Given a fresh change detector", t, func() {
		d := NewChangeDetector(0.10)
		cmd := CommandedMotion{Mode: ModeThrottleTurn, Throttle: 20, Turn: 5}

		Convey("the first command is always a change", func() {
			So(d.Changed(cmd), ShouldBeTrue)
		})

		Convey("after remembering it", func() {
			d.Remember(cmd)

			Convey("the same command is not a change", func() {
				So(d.Changed(cmd), ShouldBeFalse)
			})

			Convey("differences below the tolerance are ignored", func() {
				next := cmd
				next.Throttle += 0.05
				So(d.Changed(next), ShouldBeFalse)
			})

			Convey("differences beyond the tolerance count", func() {
				next := cmd
				next.Turn = 5.5
				So(d.Changed(next), ShouldBeTrue)
			})

			Convey("a step of exactly the tolerance counts", func() {
				next := cmd
				next.Turn = 5.1
				So(d.Changed(next), ShouldBeTrue)

				next = cmd
				next.Throttle = 20.1
				So(d.Changed(next), ShouldBeTrue)
			})

			Convey("fields of other modes are ignored", func() {
				next := cmd
				next.Speed = 500
				next.Left = 80
				So(d.Changed(next), ShouldBeFalse)
			})

			Convey("a mode change always counts", func() {
				next := cmd
				next.Mode = ModeTank
				So(d.Changed(next), ShouldBeTrue)
			})

			Convey("Force reports a change until the next Remember", func() {
				d.Force()
				So(d.Changed(cmd), ShouldBeTrue)
				d.Remember(cmd)
				So(d.Changed(cmd), ShouldBeFalse)
			})
		})
	})

	Convey("a non-positive tolerance falls back to the default", t, func() {
		So(NewChangeDetector(0).Tolerance, ShouldEqual, DefaultTolerance)
	})
}
