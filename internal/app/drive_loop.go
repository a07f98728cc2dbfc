// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"time"

	"github.com/relabs-tech/drive_computer/internal/drive"
)

type loopRequest struct {
	fn   func(*drive.Controller) error
	done chan error
}

// DriveLoop owns a Controller on a single goroutine. Other goroutines feed
// commands through the CommandBox and run controller calls through Do.
type DriveLoop struct {
	ctrl         *drive.Controller
	box          *drive.CommandBox
	tick         time.Duration
	publishEvery time.Duration
	onPublish    func(drive.Snapshot)
	requests     chan loopRequest
}

// NewDriveLoop ticks ctrl every tick and hands a snapshot to onPublish every
// publishEvery. onPublish may be nil.
func NewDriveLoop(ctrl *drive.Controller, box *drive.CommandBox, tick, publishEvery time.Duration, onPublish func(drive.Snapshot)) *DriveLoop {
	return &DriveLoop{
		ctrl:         ctrl,
		box:          box,
		tick:         tick,
		publishEvery: publishEvery,
		onPublish:    onPublish,
		requests:     make(chan loopRequest),
	}
}

// Command replaces the drive intent read on the next tick.
func (l *DriveLoop) Command(cmd drive.CommandedMotion) {
	l.box.Set(cmd)
}

// Do runs fn on the loop goroutine between ticks and returns its error.
func (l *DriveLoop) Do(ctx context.Context, fn func(*drive.Controller) error) error {
	req := loopRequest{fn: fn, done: make(chan error, 1)}
	select {
	case l.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot fetches a consistent copy of the controller state.
func (l *DriveLoop) Snapshot(ctx context.Context) (drive.Snapshot, error) {
	var snap drive.Snapshot
	err := l.Do(ctx, func(c *drive.Controller) error {
		snap = c.Snapshot()
		return nil
	})
	return snap, err
}

// Run ticks until ctx is cancelled, then commands zero duty once.
func (l *DriveLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	var publish <-chan time.Time
	if l.onPublish != nil && l.publishEvery > 0 {
		pt := time.NewTicker(l.publishEvery)
		defer pt.Stop()
		publish = pt.C
	}

	for {
		select {
		case <-ctx.Done():
			if err := l.ctrl.Stop(); err != nil {
				log.Printf("drive: stop on shutdown failed: %v", err)
				return err
			}
			log.Println("drive: motors stopped")
			return nil

		case <-ticker.C:
			l.ctrl.Update()

		case <-publish:
			l.onPublish(l.ctrl.Snapshot())

		case req := <-l.requests:
			req.done <- req.fn(l.ctrl)
		}
	}
}
