// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/relabs-tech/drive_computer/internal/config"
	"github.com/relabs-tech/drive_computer/internal/drive"
	"github.com/relabs-tech/drive_computer/internal/hardware"
)

const shellTimeout = 2 * time.Second

// parseMotion builds a command from a shell verb and its numeric arguments.
func parseMotion(verb string, args []string) (drive.CommandedMotion, error) {
	want := map[string]int{"speed": 2, "throttle": 2, "tank": 2, "stop": 0}
	n, ok := want[verb]
	if !ok {
		return drive.CommandedMotion{}, fmt.Errorf("unknown motion %q", verb)
	}
	if len(args) != n {
		return drive.CommandedMotion{}, fmt.Errorf("%s takes %d arguments, got %d", verb, n, len(args))
	}

	vals := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return drive.CommandedMotion{}, fmt.Errorf("%s: bad number %q", verb, a)
		}
		vals[i] = v
	}

	switch verb {
	case "speed":
		return drive.CommandedMotion{Mode: drive.ModeSpeedTurn, Speed: vals[0], TurnRate: vals[1]}, nil
	case "throttle":
		return drive.CommandedMotion{Mode: drive.ModeThrottleTurn, Throttle: vals[0], Turn: vals[1]}, nil
	case "tank":
		return drive.CommandedMotion{Mode: drive.ModeTank, Left: vals[0], Right: vals[1]}, nil
	}
	return drive.CommandedMotion{Mode: drive.ModeThrottleTurn}, nil
}

// RunDriveShell drives the motors interactively without MQTT.
func RunDriveShell(simulated bool) error {
	cfg := config.Get()

	transport, closer, err := openTransport(cfg, simulated)
	if err != nil {
		return err
	}
	defer closer.Close()

	enable, err := hardware.OpenEnablePin(cfg.MotorEnablePin)
	if err != nil {
		return err
	}

	shell := ishell.New()

	box := &drive.CommandBox{}
	ctrl, err := drive.NewController(transport, box, paramsFromConfig(cfg),
		drive.WithCalibrationHandler(func(r drive.CalibrationResult) {
			shell.Printf("calibration done: %dms, pulses %d/%d, %.1f/%.1f mm\n",
				r.ElapsedMs, r.PulsesLeft, r.PulsesRight, r.DistanceLeft, r.DistanceRight)
		}))
	if err != nil {
		return err
	}
	loop := NewDriveLoop(ctrl, box, time.Duration(cfg.TickInterval)*time.Millisecond, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	if err := enable.Enable(); err != nil {
		cancel()
		<-loopDone
		return err
	}

	do := func(c *ishell.Context, fn func(*drive.Controller) error) {
		rctx, rcancel := context.WithTimeout(ctx, shellTimeout)
		defer rcancel()
		if err := loop.Do(rctx, fn); err != nil {
			c.Println("error:", err)
		}
	}

	shell.Println("Drive development shell")
	shell.ShowPrompt(true)

	for _, verb := range []struct{ name, help string }{
		{"speed", "speed <mm/s> <mrad/s>: closed-loop speed and turn rate"},
		{"throttle", "throttle <%> <%>: open-loop throttle and turn"},
		{"tank", "tank <left %> <right %>: per-side throttle"},
		{"stop", "stop: zero duty on both motors"},
	} {
		verb := verb
		shell.AddCmd(&ishell.Cmd{
			Name: verb.name,
			Help: verb.help,
			Func: func(c *ishell.Context) {
				cmd, err := parseMotion(verb.name, c.Args)
				if err != nil {
					c.Println(err)
					return
				}
				loop.Command(cmd)
			},
		})
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "print the controller snapshot",
		Func: func(c *ishell.Context) {
			rctx, rcancel := context.WithTimeout(ctx, shellTimeout)
			defer rcancel()
			snap, err := loop.Snapshot(rctx)
			if err != nil {
				c.Println("error:", err)
				return
			}
			c.Println(formatMotor(snap.Motor))
			c.Println(formatOdometry(snap.Odometry))
			c.Println(formatLink(snap.Link))
			if snap.Calibrating {
				c.Println("[CAL]   in progress")
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "calibrate",
		Help: "run a straight-line calibration at the configured throttle",
		Func: func(c *ishell.Context) {
			do(c, (*drive.Controller).StartCalibration)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "geometry",
		Help: "geometry [<gain L> <gain R> <track mm>]: show or set drive geometry",
		Func: func(c *ishell.Context) {
			do(c, func(ctrl *drive.Controller) error {
				g := ctrl.Geometry()
				if len(c.Args) == 0 {
					out, _ := json.MarshalIndent(g, "", "  ")
					c.Println(string(out))
					return nil
				}
				if len(c.Args) != 3 {
					return fmt.Errorf("geometry takes 0 or 3 arguments")
				}
				var err error
				if g.GainLeft, err = strconv.ParseFloat(c.Args[0], 64); err != nil {
					return err
				}
				if g.GainRight, err = strconv.ParseFloat(c.Args[1], 64); err != nil {
					return err
				}
				if g.TrackSpan, err = strconv.ParseFloat(c.Args[2], 64); err != nil {
					return err
				}
				return ctrl.SetGeometry(g)
			})
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "heading",
		Help: "heading <deg>: reset the integrated heading",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("heading takes 1 argument")
				return
			}
			deg, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Println("bad number:", c.Args[0])
				return
			}
			do(c, func(ctrl *drive.Controller) error {
				ctrl.SetHeading(deg)
				return nil
			})
		},
	})

	shell.Run()

	cancel()
	runErr := <-loopDone
	if err := enable.Disable(); err != nil {
		return err
	}
	return runErr
}
