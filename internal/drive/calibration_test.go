package drive

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/relabs-tech/drive_computer/internal/motor"
)

func TestCalibration(t *testing.T) {
	Convey("Given an idle calibration sequencer", t, func() {
		ft := newFakeTransport()
		clock := newFakeClock()
		cal := NewCalibration(NewTranslator(ft, 1.0), ft, 5*time.Second, 10, quietLogger())
		var status motor.Status

		So(cal.TestInProgress(), ShouldBeFalse)

		Convey("Step does nothing while idle", func() {
			done, _, err := cal.Step(clock.Now(), testGeometry, &status)
			So(done, ShouldBeFalse)
			So(err, ShouldBeNil)
			So(ft.calls, ShouldBeEmpty)
		})

		Convey("Start resets the encoders and drives straight", func() {
			So(cal.Start(clock.Now(), testGeometry, &status), ShouldBeNil)
			So(cal.TestInProgress(), ShouldBeTrue)
			So(ft.calls, ShouldResemble, []string{"reset", "speed"})
			So(ft.speeds, ShouldResemble, []Setpoint{{750, 750}})

			Convey("a second start is refused", func() {
				So(cal.Start(clock.Now(), testGeometry, &status), ShouldEqual, ErrCalibrationActive)
			})

			Convey("nothing happens before the duration", func() {
				ft.calls = nil
				clock.advance(4 * time.Second)
				done, _, err := cal.Step(clock.Now(), testGeometry, &status)
				So(done, ShouldBeFalse)
				So(err, ShouldBeNil)
				So(ft.calls, ShouldBeEmpty)
			})

			Convey("after the duration it measures, stops and finishes", func() {
				ft.calls = nil
				ft.encoderL, ft.encoderR = 18750, 19000
				clock.advance(5 * time.Second)

				done, result, err := cal.Step(clock.Now(), testGeometry, &status)
				So(err, ShouldBeNil)
				So(done, ShouldBeTrue)
				So(cal.TestInProgress(), ShouldBeFalse)
				So(ft.calls, ShouldResemble, []string{"encoders", "duty"})

				So(result.EncodersValid, ShouldBeTrue)
				So(result.ElapsedMs, ShouldEqual, int64(5000))
				So(result.PulsesLeft, ShouldEqual, int32(18750))
				So(result.SpeedLeft, ShouldAlmostEqual, 3750, 1e-9)
				So(result.DistanceRight, ShouldAlmostEqual, 3800, 1e-9)
			})

			Convey("a failed stop keeps the run active and retries without re-measuring", func() {
				clock.advance(6 * time.Second)
				ft.fail["duty"] = true
				done, _, err := cal.Step(clock.Now(), testGeometry, &status)
				So(done, ShouldBeFalse)
				So(err, ShouldNotBeNil)
				So(cal.TestInProgress(), ShouldBeTrue)

				ft.fail["duty"] = false
				ft.encoderL = 1
				done, result, err := cal.Step(clock.Now(), testGeometry, &status)
				So(done, ShouldBeTrue)
				So(err, ShouldBeNil)
				So(result.PulsesLeft, ShouldEqual, int32(1000))
				So(ft.count("encoders"), ShouldEqual, 1)
			})

			Convey("an encoder failure still stops the motors", func() {
				status.EncoderLeft, status.EncodersValid = 1000, true
				clock.advance(5 * time.Second)
				ft.fail["encoders"] = true
				done, result, err := cal.Step(clock.Now(), testGeometry, &status)
				So(done, ShouldBeTrue)
				So(err, ShouldNotBeNil)
				So(result.EncodersValid, ShouldBeFalse)
				So(status.EncodersValid, ShouldBeFalse)
				So(ft.duties, ShouldEqual, 1)
			})
		})

		Convey("a failed encoder reset leaves the sequencer idle", func() {
			ft.fail["reset"] = true
			So(cal.Start(clock.Now(), testGeometry, &status), ShouldNotBeNil)
			So(cal.TestInProgress(), ShouldBeFalse)
			So(ft.speeds, ShouldBeEmpty)
		})
	})
}
