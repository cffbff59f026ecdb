// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package feedback drives the haptic GPIO patterns from §4.5: a simple
// timed pulse and a multi-step on/off sequence played on wrap. It is built
// the way the teacher's orientation package opens GPIO pins — periph.io's
// host init + gpioreg lookup — adapted from an SPI chip-select pin to a
// driven output pin.
package feedback

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Driver implements mixer.FeedbackDriver against real GPIO pins.
type Driver struct {
	mu sync.Mutex

	primary   gpio.PinIO
	secondary gpio.PinIO
}

// New opens the primary and optional secondary feedback pins by name. An
// empty secondaryPin disables secondary-pin handling (Pulse/Pattern then
// only drive primary).
func New(primaryPin, secondaryPin string) (*Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("feedback: periph host init: %w", err)
	}

	primary := gpioreg.ByName(primaryPin)
	if primary == nil {
		return nil, fmt.Errorf("feedback: primary pin %q not found", primaryPin)
	}

	d := &Driver{primary: primary}

	if secondaryPin != "" {
		secondary := gpioreg.ByName(secondaryPin)
		if secondary == nil {
			return nil, fmt.Errorf("feedback: secondary pin %q not found", secondaryPin)
		}
		d.secondary = secondary
	}

	return d, nil
}

// Pulse implements the "simple pulse" pattern from §4.5: save previous
// secondary state, drive secondary high, drive primary high, schedule
// primary-off + secondary-restore after duration.
func (d *Driver) Pulse(durationMs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var prevSecondary gpio.Level
	if d.secondary != nil {
		prevSecondary = d.secondary.Read()
		_ = d.secondary.Out(gpio.High)
	}
	_ = d.primary.Out(gpio.High)

	time.AfterFunc(time.Duration(durationMs)*time.Millisecond, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		_ = d.primary.Out(gpio.Low)
		if d.secondary != nil {
			_ = d.secondary.Out(prevSecondary)
		}
	})
}

// Pattern implements the wrap-indication sequence from §4.5: steps[0] is
// the initial on-duration; each subsequent step toggles primary and
// schedules the next step. After the last step, secondary is restored and
// primary driven low.
func (d *Driver) Pattern(steps []int64) {
	if len(steps) == 0 {
		return
	}

	d.mu.Lock()
	var prevSecondary gpio.Level
	if d.secondary != nil {
		prevSecondary = d.secondary.Read()
		_ = d.secondary.Out(gpio.High)
	}
	_ = d.primary.Out(gpio.High)
	d.mu.Unlock()

	d.playStep(steps, 0, true, prevSecondary)
}

func (d *Driver) playStep(steps []int64, idx int, level bool, prevSecondary gpio.Level) {
	time.AfterFunc(time.Duration(steps[idx])*time.Millisecond, func() {
		next := idx + 1

		d.mu.Lock()
		if next >= len(steps) {
			_ = d.primary.Out(gpio.Low)
			if d.secondary != nil {
				_ = d.secondary.Out(prevSecondary)
			}
			d.mu.Unlock()
			return
		}

		level = !level
		if level {
			_ = d.primary.Out(gpio.High)
		} else {
			_ = d.primary.Out(gpio.Low)
		}
		d.mu.Unlock()

		d.playStep(steps, next, level, prevSecondary)
	})
}
