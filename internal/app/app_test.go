package app

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/relabs-tech/drive_computer/internal/config"
	"github.com/relabs-tech/drive_computer/internal/drive"
	"github.com/relabs-tech/drive_computer/internal/motor"
	"github.com/relabs-tech/drive_computer/internal/roboclaw"
)

func TestParseMotion(t *testing.T) {
	Convey("Given shell motion verbs", t, func() {
		Convey("speed maps to speed and turn rate", func() {
			cmd, err := parseMotion("speed", []string{"250", "-100"})
			So(err, ShouldBeNil)
			So(cmd, ShouldResemble, drive.CommandedMotion{Mode: drive.ModeSpeedTurn, Speed: 250, TurnRate: -100})
		})

		Convey("throttle and tank map to percent fields", func() {
			cmd, err := parseMotion("throttle", []string{"40", "5"})
			So(err, ShouldBeNil)
			So(cmd.Mode, ShouldEqual, drive.ModeThrottleTurn)
			So(cmd.Throttle, ShouldEqual, 40.0)
			So(cmd.Turn, ShouldEqual, 5.0)

			cmd, err = parseMotion("tank", []string{"-20", "20"})
			So(err, ShouldBeNil)
			So(cmd, ShouldResemble, drive.CommandedMotion{Mode: drive.ModeTank, Left: -20, Right: 20})
		})

		Convey("stop is zero throttle", func() {
			cmd, err := parseMotion("stop", nil)
			So(err, ShouldBeNil)
			So(cmd, ShouldResemble, drive.CommandedMotion{Mode: drive.ModeThrottleTurn})
		})

		Convey("bad input is rejected", func() {
			_, err := parseMotion("speed", []string{"1"})
			So(err, ShouldNotBeNil)
			_, err = parseMotion("tank", []string{"a", "1"})
			So(err, ShouldNotBeNil)
			_, err = parseMotion("fly", nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDecodeCommand(t *testing.T) {
	Convey("Given MQTT command payloads", t, func() {
		Convey("a tank command decodes", func() {
			cmd, err := decodeCommand([]byte(`{"mode":"tank","left":30,"right":-30}`))
			So(err, ShouldBeNil)
			So(cmd, ShouldResemble, drive.CommandedMotion{Mode: drive.ModeTank, Left: 30, Right: -30})
		})

		Convey("an unknown mode is passed through", func() {
			cmd, err := decodeCommand([]byte(`{"mode":"hover"}`))
			So(err, ShouldBeNil)
			So(cmd.Mode, ShouldEqual, drive.Mode("hover"))
		})

		Convey("malformed JSON is an error", func() {
			_, err := decodeCommand([]byte(`{"mode":`))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParamsFromConfig(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := config.Defaults()
		p := paramsFromConfig(cfg)

		So(p.Geometry.GainLeft, ShouldEqual, cfg.GainLeft)
		So(p.Geometry.TrackSpan, ShouldEqual, cfg.TrackSpan)
		So(p.Geometry.FullSpeedRight, ShouldEqual, cfg.FullSpeedRight)
		So(p.ChangeTolerance, ShouldEqual, cfg.ChangeTolerance)
		So(p.CalibrationDuration, ShouldEqual, 5*time.Second)
		So(p.FirmwareConstraint, ShouldEqual, cfg.DriverFirmwareConstraint)
	})
}

func TestSaveCalibration(t *testing.T) {
	Convey("Given a completed calibration run", t, func() {
		dir := filepath.Join(t.TempDir(), "cal")
		started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
		r := drive.CalibrationResult{
			Started:       started,
			ElapsedMs:     5000,
			Throttle:      10,
			EncodersValid: true,
			PulsesLeft:    3750,
			PulsesRight:   3000,
			DistanceLeft:  750,
			DistanceRight: 600,
		}
		g := motor.Geometry{GainLeft: 5, GainRight: 5, TrackSpan: 380, FullSpeedLeft: 7500, FullSpeedRight: 7500}

		path, err := saveCalibration(dir, r, g)
		So(err, ShouldBeNil)
		So(filepath.Base(path), ShouldEqual, "drive_calibration_20260304T050607Z.json")

		data, err := os.ReadFile(path)
		So(err, ShouldBeNil)

		var rec calibrationRecord
		So(json.Unmarshal(data, &rec), ShouldBeNil)
		So(rec.SchemaVersion, ShouldEqual, 1)
		So(rec.Result.PulsesLeft, ShouldEqual, int32(3750))
		So(rec.Geometry, ShouldResemble, g)
		So(rec.Notes, ShouldContain, "left/right pulse ratio 1.2500")
	})
}

func TestStatusFeed(t *testing.T) {
	Convey("Given a status feed", t, func() {
		cfg := config.Defaults()
		feed := newStatusFeed(cfg)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		get := func() *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			feed.handleAPI(rec, httptest.NewRequest(http.MethodGet, "/api/drive", nil))
			return rec
		}

		Convey("the API reports no data before any message", func() {
			So(get().Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("status messages are merged into one view", func() {
			So(feed.apply(cfg.TopicMotorStatus, []byte(`{"voltage_v":24.1,"voltage_valid":true}`), now), ShouldBeNil)
			So(feed.apply(cfg.TopicLinkHealth, []byte(`{"responding":true,"retries":0,"firmware_ok":true}`), now), ShouldBeNil)

			rec := get()
			So(rec.Code, ShouldEqual, http.StatusOK)

			var view driveView
			So(json.Unmarshal(rec.Body.Bytes(), &view), ShouldBeNil)
			So(view.Motor, ShouldNotBeNil)
			So(view.Motor.Voltage, ShouldEqual, 24.1)
			So(view.Link.Responding, ShouldBeTrue)
			So(view.Odometry, ShouldBeNil)
		})

		Convey("bad payloads and unknown topics are rejected", func() {
			So(feed.apply(cfg.TopicOdometry, []byte(`nope`), now), ShouldNotBeNil)
			So(feed.apply("other/topic", []byte(`{}`), now), ShouldNotBeNil)
			So(get().Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestFormatLink(t *testing.T) {
	Convey("Link lines show state and firmware", t, func() {
		So(formatLink(drive.LinkHealth{}), ShouldEqual, "[LINK]  DOWN retries=0 firmware=unknown")
		So(formatLink(drive.LinkHealth{Responding: true, Firmware: "v3.0.0"}), ShouldEqual,
			"[LINK]  UP retries=0 firmware=v3.0.0 (unsupported)")
	})
}

func TestDriveLoop(t *testing.T) {
	Convey("Given a drive loop around a simulated driver", t, func() {
		sim := roboclaw.NewSimulator(7500)
		box := &drive.CommandBox{}
		p := paramsFromConfig(config.Defaults())
		p.CalibrationDuration = time.Hour

		ctrl, err := drive.NewController(sim, box, p)
		So(err, ShouldBeNil)

		published := make(chan drive.Snapshot, 100)
		loop := NewDriveLoop(ctrl, box, 5*time.Millisecond, 20*time.Millisecond, func(s drive.Snapshot) {
			select {
			case published <- s:
			default:
			}
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- loop.Run(ctx) }()

		reqCtx, reqCancel := context.WithTimeout(context.Background(), time.Second)
		defer reqCancel()

		Convey("commands are picked up by later ticks", func() {
			loop.Command(drive.CommandedMotion{Mode: drive.ModeTank, Left: 20, Right: 20})

			var snap drive.Snapshot
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) {
				snap, err = loop.Snapshot(reqCtx)
				if err != nil || snap.Command.Mode == drive.ModeTank {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			So(err, ShouldBeNil)
			So(snap.Command.Left, ShouldEqual, 20.0)
			So(snap.Link.Responding, ShouldBeTrue)
		})

		Convey("calibration requests run on the loop", func() {
			So(loop.Do(reqCtx, (*drive.Controller).StartCalibration), ShouldBeNil)
			So(loop.Do(reqCtx, (*drive.Controller).StartCalibration), ShouldEqual, drive.ErrCalibrationActive)

			snap, err := loop.Snapshot(reqCtx)
			So(err, ShouldBeNil)
			So(snap.Calibrating, ShouldBeTrue)
		})

		Convey("snapshots are published", func() {
			select {
			case <-published:
			case <-time.After(time.Second):
				So("no snapshot published", ShouldBeEmpty)
			}
		})

		Reset(func() {
			cancel()
			<-done
		})

		Convey("cancelling stops the loop cleanly", func() {
			cancel()
			So(<-done, ShouldBeNil)
			done <- nil
		})
	})
}

func TestSweepCommand(t *testing.T) {
	Convey("Given the bench sweep pattern", t, func() {
		Convey("it starts at rest", func() {
			cmd := sweepCommand(0, 20)
			So(cmd.Mode, ShouldEqual, drive.ModeThrottleTurn)
			So(cmd.Throttle, ShouldEqual, 0.0)
			So(cmd.Turn, ShouldEqual, 0.0)
		})

		Convey("it stays within the amplitude", func() {
			for s := 0; s < 120; s++ {
				cmd := sweepCommand(time.Duration(s)*time.Second, 20)
				So(math.Abs(cmd.Throttle), ShouldBeLessThanOrEqualTo, 20.0)
				So(math.Abs(cmd.Turn), ShouldBeLessThanOrEqualTo, 10.0)
			}
		})
	})
}

func TestSetupLogging(t *testing.T) {
	Convey("Given a configured log file", t, func() {
		defer log.SetOutput(os.Stderr)
		dir := t.TempDir()
		cfg := config.Defaults()
		cfg.LogFile = filepath.Join(dir, "drive.log")

		Convey("log lines reach the file", func() {
			closer := SetupLogging(cfg, "")
			log.Println("drive: hello file")
			So(closer.Close(), ShouldBeNil)

			data, err := os.ReadFile(cfg.LogFile)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "drive: hello file")
		})

		Convey("the environment override wins", func() {
			override := filepath.Join(dir, "override.log")
			closer := SetupLogging(cfg, override)
			log.Println("drive: hello override")
			So(closer.Close(), ShouldBeNil)

			_, err := os.Stat(override)
			So(err, ShouldBeNil)
			_, err = os.Stat(cfg.LogFile)
			So(os.IsNotExist(err), ShouldBeTrue)
		})
	})
}
