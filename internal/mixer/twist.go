// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import (
	"math"
	"time"
)

const (
	historyCleanupHandle   = "twist-history-cleanup"
	directionCleanupHandle = "twist-direction-cleanup"
)

// runTwistTick implements §4.3's detector plus §4.3.9's emission. Called
// with d.mu held, on the scroll tick.
func (d *Device) runTwistTick(now int64) {
	result := d.detectTwist(now)

	effective := d.sens.twistCoef
	if d.sens.twistAccelEnabled {
		effective *= d.sens.twistAccelValue
	}
	scaled := result * effective

	stale := now-d.lastTwistEmitMs > d.tunables.TwistRemainderTTLMs
	if stale {
		d.wheelRemainder = scaled
	} else {
		d.wheelRemainder += scaled
	}

	v := truncInt16(d.wheelRemainder)
	d.wheelRemainder -= float64(v)

	if v != 0 {
		out := v
		if d.sens.twistReversed {
			out = -v
		}
		d.emit(AxisWheel, out, true)
		d.onTwistEmitLocked(v)
	}

	d.lastTwistEmitMs = now
}

// detectTwist implements §4.3.1-§4.3.8, returning the accepted scroll
// magnitude or 0 if any filter rejects the dataframe.
func (d *Device) detectTwist(now int64) float64 {
	s1x, s1y := d.twistAcc[0].X, d.twistAcc[0].Y
	s2x, s2y := d.twistAcc[1].X, d.twistAcc[1].Y
	d.twistAcc = [2]vec2{}

	if s1x == 0 && s1y == 0 && s2x == 0 && s2y == 0 {
		return 0
	}

	// 4.3.1 threshold filter
	if absFloat(s1y) < d.cfg.TwistThres || absFloat(s2y) < d.cfg.TwistThres {
		return 0
	}

	// 4.3.2 significant-translation hard gate
	translationAllowed := d.cfg.TwistInterferenceThres * d.tunables.SignificantMovementMul
	if absFloat(s1x+s2x) > translationAllowed || absFloat(s1y+s2y) > translationAllowed {
		return 0
	}

	// 4.3.3 direction filter
	dir := directionDown
	if s1y < s2y {
		dir = directionUp
	}
	if d.cfg.DirectionFilterEnabled && dir != d.lastTwistDirection {
		d.lastTwistDirection = dir
		d.debounceStartMs = now
		d.emaInitialized = false
		d.history.clear()
		return 0
	}

	// 4.3.4 history accrual & warmup
	d.history.push(now)
	cutoff := now - d.cfg.TwistInterferenceWindowMs
	valid := d.history.pruneAndCount(cutoff)
	required := float64(d.cfg.TwistInterferenceWindowMs) / float64(d.cfg.SyncScrollReportMs)
	if float64(valid) < required {
		return 0
	}

	// 4.3.5 EMA smoothing
	var deltaY float64
	if dir == directionUp {
		deltaY = absFloat(s2y - s1y)
	} else {
		deltaY = absFloat(s1y - s2y)
	}
	translation := absFloat(s1x+s2x) + absFloat(s1y+s2y)

	if !d.emaInitialized {
		d.emaDeltaY = deltaY
		d.emaTranslation = translation
		d.emaInitialized = true
	} else {
		alpha := d.tunables.EMAAlphaPercent / 100
		d.emaDeltaY = alpha*deltaY + (1-alpha)*d.emaDeltaY
		d.emaTranslation = alpha*translation + (1-alpha)*d.emaTranslation
	}

	// 4.3.6 shape gate
	avgDy := math.Floor(d.emaDeltaY)
	avgTr := math.Floor(d.emaTranslation)
	maxMag := avgTr * d.tunables.DyOverTransNum / d.tunables.DyOverTransDen

	var result float64
	if avgDy-d.cfg.TwistThres > maxMag {
		result = avgDy - avgTr
	}
	if s1y > s2y {
		result = -result
	}

	if avgTr > translationAllowed {
		d.emaInitialized = false
		d.history.clear()
		return 0
	}
	if absFloat(result) < d.cfg.TwistThres || absFloat(result) > d.tunables.TwistMaxValue {
		return 0
	}
	if avgTr > d.cfg.TwistInterferenceThres {
		return 0
	}

	// 4.3.7 temporal gates
	if now-d.debounceStartMs < d.tunables.TwistFilterDebounceMs {
		return 0
	}
	if now-d.lastTwistMs > d.tunables.TwistFilterTTLMs {
		d.debounceStartMs = now
		d.lastTwistMs = now
		return 0
	}
	if now-d.lastSignificantMovementMs < d.tunables.SteadyCooldownMs {
		return 0
	}

	// 4.3.8 accept
	d.lastTwistMs = now
	d.lastTwistDirection = dir

	window := time.Duration(d.cfg.TwistInterferenceWindowMs) * time.Millisecond
	d.scheduler.Reschedule(historyCleanupHandle, window, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.history.clear()
	})

	dirTTL := time.Duration(d.tunables.DirectionFilterTTLMs) * time.Millisecond
	d.scheduler.Reschedule(directionCleanupHandle, dirTTL, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.lastTwistDirection = directionNone
	})

	return result
}
