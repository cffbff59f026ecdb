// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import "fmt"

// epsilon is the tolerance used to detect a coefficient sitting exactly at
// a range boundary, per §4.4 step 4's "re-set to max if |current - min| <=
// 1e-6" clause.
const epsilon = 1e-6

// AdjustSensitivity implements §4.4's behavior-cycling algorithm for scope
// (pointer or scroll), applying the behavior descriptor registered under id.
func (d *Device) AdjustSensitivity(id BehaviorID, scope Scope, dir Direction, steps int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.behaviors[id]
	if !ok {
		return fmt.Errorf("%w: unknown behavior %q", ErrConfigInvalid, id)
	}

	var current float64
	switch scope {
	case ScopePointer:
		current = d.sens.moveCoef
	case ScopeScroll:
		current = d.sens.twistCoef
	}

	newVal, wrapped := adjust(current, b, dir, steps, d.tunables.DriftCorrectionTenths)

	switch scope {
	case ScopePointer:
		d.sens.moveCoef = newVal
	case ScopeScroll:
		d.sens.twistCoef = newVal
	}
	d.scheduleSaveLocked()

	d.driveAdjustFeedbackLocked(b, wrapped)
	return nil
}

// AdjustAccel applies the same algorithm to twist_accel_value (§4.4's
// "Acceleration adjust").
func (d *Device) AdjustAccel(id BehaviorID, dir Direction, steps int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.behaviors[id]
	if !ok {
		return fmt.Errorf("%w: unknown behavior %q", ErrConfigInvalid, id)
	}

	newVal, wrapped := adjust(d.sens.twistAccelValue, b, dir, steps, d.tunables.DriftCorrectionTenths)
	d.sens.twistAccelValue = newVal
	d.scheduleSaveLocked()

	d.driveAdjustFeedbackLocked(b, wrapped)
	return nil
}

// adjust runs §4.4 steps 1-4 in isolation, returning the new coefficient
// value and whether the step wrapped (for feedback pattern selection).
func adjust(current float64, b BehaviorDescriptor, dir Direction, steps int, driftCorrectionTenths float64) (float64, bool) {
	oneStep := float64(b.Step) / 1000
	min := float64(b.MinStep) * oneStep
	max := float64(b.MaxStep) * oneStep
	if max > b.MaxMultiplier {
		max = b.MaxMultiplier
	}
	if !b.Scroll && max > 1.0 {
		max = 1.0
	}

	current = driftSnap(current, b.Step, min, driftCorrectionTenths)

	delta := oneStep * float64(steps)
	if dir == DirectionDec {
		delta = -delta
	}
	newVal := current + delta

	wrapped := false
	if b.Wrap {
		if newVal > max {
			newVal = min
			if absFloat(current-min) <= epsilon {
				newVal = max
			}
			wrapped = true
		} else if newVal < min {
			newVal = max
			wrapped = true
		}
	} else {
		newVal = clamp(newVal, min, max)
	}

	return newVal, wrapped
}

func (d *Device) driveAdjustFeedbackLocked(b BehaviorDescriptor, wrapped bool) {
	if d.feedback == nil || b.FeedbackDurationMs <= 0 {
		return
	}
	if wrapped && len(b.FeedbackWrapPattern) > 0 {
		d.feedback.Pattern(b.FeedbackWrapPattern)
		return
	}
	if !wrapped || b.FeedbackOnLimit {
		d.feedback.Pulse(b.FeedbackDurationMs)
	}
}
