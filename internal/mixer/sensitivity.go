// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import (
	"log"
	"math"
	"time"
)

const settingsSaveHandle = "sensitivity-save"

// GetMoveCoef returns the current pointer sensitivity coefficient.
func (d *Device) GetMoveCoef() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sens.moveCoef
}

// SetMoveCoef writes the pointer sensitivity coefficient and enqueues a
// deferred save. v is expected in (0, 1]; callers (behaviors) are
// responsible for the adjust/clamp math in policy.go.
func (d *Device) SetMoveCoef(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sens.moveCoef = v
	d.scheduleSaveLocked()
}

// GetTwistCoef returns the current scroll sensitivity coefficient.
func (d *Device) GetTwistCoef() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sens.twistCoef
}

// SetTwistCoef writes the scroll sensitivity coefficient and enqueues a
// deferred save.
func (d *Device) SetTwistCoef(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sens.twistCoef = v
	d.scheduleSaveLocked()
}

// TwistEnabled reports whether scroll emission is active.
func (d *Device) TwistEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sens.twistEnabled
}

// SetTwistEnabled sets the twist-enable flag directly. Like ToggleTwist, it
// does not schedule a save.
func (d *Device) SetTwistEnabled(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sens.twistEnabled = v
}

// ToggleTwist flips twist_enabled and returns the new value.
func (d *Device) ToggleTwist() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sens.twistEnabled = !d.sens.twistEnabled
	return d.sens.twistEnabled
}

// TwistReversed reports whether wheel output sign is flipped.
func (d *Device) TwistReversed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sens.twistReversed
}

// ToggleTwistReverse flips twist_reversed, persists it, and returns the new
// value.
func (d *Device) ToggleTwistReverse() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sens.twistReversed = !d.sens.twistReversed
	d.scheduleSaveLocked()
	return d.sens.twistReversed
}

// EnableAcceleration marks the acceleration driver initialized and applies
// any settings buffered by a persistence load that happened before this
// call, per the two-phase load supplemented from
// behavior_p2sm_accel_adj.c's settings-load callback gating.
func (d *Device) EnableAcceleration() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.accelInitialized = true
	if d.pendingAccelBlob != nil {
		d.sens.twistAccelEnabled = d.pendingAccelBlob.Enabled
		d.sens.twistAccelValue = float64(d.pendingAccelBlob.Value)
		d.pendingAccelBlob = nil
	}
}

// TwistAccelEnabled reports whether the acceleration multiplier is applied.
func (d *Device) TwistAccelEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sens.twistAccelEnabled
}

// TwistAccelValue returns the current acceleration multiplier.
func (d *Device) TwistAccelValue() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sens.twistAccelValue
}

// SetTwistAccel writes the acceleration multiplier and enqueues a save.
func (d *Device) SetTwistAccel(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sens.twistAccelValue = v
	d.scheduleSaveLocked()
}

// ToggleAccel applies action to twist_accel_enabled and returns the new
// value.
func (d *Device) ToggleAccel(action AccelAction) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch action {
	case AccelEnable:
		d.sens.twistAccelEnabled = true
	case AccelDisable:
		d.sens.twistAccelEnabled = false
	case AccelToggle:
		d.sens.twistAccelEnabled = !d.sens.twistAccelEnabled
	}
	d.scheduleSaveLocked()
	return d.sens.twistAccelEnabled
}

// scheduleSaveLocked enqueues a deferred, debounced persistence save.
// Rescheduling while a save is pending replaces the previous deadline, per
// §4.4's "re-scheduling the save replaces the previous deadline".
func (d *Device) scheduleSaveLocked() {
	if d.store == nil {
		return
	}
	delay := time.Duration(d.tunables.SettingsSaveDelayMs) * time.Millisecond
	d.scheduler.Reschedule(settingsSaveHandle, delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.saveSensitivityLocked()
	})
}

func (d *Device) saveSensitivityLocked() {
	blob := SensitivityBlob{
		MoveCoef:      float32(d.sens.moveCoef),
		TwistCoef:     float32(d.sens.twistCoef),
		TwistReversed: d.sens.twistReversed,
	}
	if err := d.store.SaveSensitivity(blob); err != nil {
		log.Printf("mixer: %v: save sensitivity: %v", ErrPersistenceIO, err)
	}

	accel := AccelBlob{
		Enabled: d.sens.twistAccelEnabled,
		Value:   float32(d.sens.twistAccelValue),
	}
	if err := d.store.SaveAccel(accel); err != nil {
		log.Printf("mixer: %v: save accel: %v", ErrPersistenceIO, err)
	}
}

// loadSensitivityLocked loads persisted state at construction time. On
// failure the sentinel defaults from New (move_coef=1, twist_coef=1) are
// kept, per §7's "state reverts to defaults on load failure".
func (d *Device) loadSensitivityLocked() {
	blob, err := d.store.LoadSensitivity()
	if err != nil {
		log.Printf("mixer: %v: load sensitivity: %v", ErrPersistenceIO, err)
	} else {
		d.sens.moveCoef = float64(blob.MoveCoef)
		d.sens.twistCoef = float64(blob.TwistCoef)
		d.sens.twistReversed = blob.TwistReversed
	}

	accel, err := d.store.LoadAccel()
	if err != nil {
		log.Printf("mixer: %v: load accel: %v", ErrPersistenceIO, err)
		return
	}
	// Buffered until EnableAcceleration runs; see the two-phase load note
	// above EnableAcceleration.
	d.pendingAccelBlob = &accel
}

// driftSnap implements §4.4 step 2. Distances are compared in thousandths
// (the same unit the Step field and the shell's millis commands use) rather
// than in raw float coefficient units: at float-coefficient scale the gap
// between "just drifted" and "exact multiple" is a few parts in a
// thousand, too fine to compare reliably against DRIFT_CORRECTION once it
// has been converted down to absolute units. The guard and the distance
// check both key off the raw integer step size, matching the worked
// example in §8 (step=10, DRIFT_CORRECTION=20: a coefficient one
// thousandth off its nearest multiple is judged drifted and snapped).
func driftSnap(current float64, step int, min, driftCorrectionTenths float64) float64 {
	rawStep := float64(step)
	if rawStep*200 < driftCorrectionTenths {
		return current
	}

	currentThousandths := current * 1000
	nearestThousandths := math.Round(currentThousandths/rawStep) * rawStep
	distance := absFloat(currentThousandths - nearestThousandths)
	threshold := driftCorrectionTenths / 20

	if distance < threshold {
		return current
	}

	nearest := nearestThousandths / 1000
	if nearest < min {
		nearest = min
	}
	return nearest
}
