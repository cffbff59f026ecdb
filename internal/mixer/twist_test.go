// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acceptableTwistDevice returns a Device primed so that every gate except
// the one under test passes, letting each test flip exactly one piece of
// state and observe its effect in isolation. The signal is a clean
// opposing-y pair (s1y=-40, s2y=+40), which computes dir=directionUp,
// deltaY=80, translation=0 — comfortably clear of every threshold in
// identityBallConfig().
func acceptableTwistDevice(t *testing.T) (*Device, int64) {
	t.Helper()
	clock := &testClock{now: 10_000}
	d := newTestDevice(t, identityBallConfig(), nil, &fakeBus{}, nil, clock.Now)

	d.lastTwistDirection = directionUp
	d.debounceStartMs = clock.now - 1000
	d.lastTwistMs = clock.now - 10
	d.lastSignificantMovementMs = clock.now - 1000

	return d, clock.now
}

func TestDetectTwistThresholdFilterRejectsQuietSensor(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	d.twistAcc[0] = vec2{X: 0, Y: 10} // below TwistThres=30
	d.twistAcc[1] = vec2{X: 0, Y: 40}

	result := d.detectTwist(now)

	assert.Zero(t, result)
	assert.Zero(t, d.history.len(), "threshold filter runs before history accrual")
}

func TestDetectTwistTranslationHardGateRejectsLargeXMotion(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	d.twistAcc[0] = vec2{X: 30, Y: -40}
	d.twistAcc[1] = vec2{X: 30, Y: 40}

	result := d.detectTwist(now)

	assert.Zero(t, result, "|s1x+s2x|=60 exceeds translation_allowed=40")
	assert.Zero(t, d.history.len(), "hard gate runs before history accrual")
}

func TestDetectTwistDirectionFlipResetsWarmupState(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	d.emaInitialized = true
	d.emaDeltaY = 42
	d.history.push(now - 10)
	d.history.push(now - 5)

	// s1y > s2y => dir computes Down, flipping from the primed Up.
	d.twistAcc[0] = vec2{X: 0, Y: 40}
	d.twistAcc[1] = vec2{X: 0, Y: -40}

	result := d.detectTwist(now)

	assert.Zero(t, result)
	assert.Equal(t, directionDown, d.lastTwistDirection)
	assert.Equal(t, now, d.debounceStartMs)
	assert.False(t, d.emaInitialized)
	assert.Zero(t, d.history.len())
}

func TestDetectTwistWarmupRequiresFullInterferenceWindow(t *testing.T) {
	clock := &testClock{now: 10_000}
	d := newTestDevice(t, identityBallConfig(), nil, &fakeBus{}, nil, clock.Now)
	d.lastTwistDirection = directionUp // skip the direction-filter reset

	required := int(d.cfg.TwistInterferenceWindowMs / d.cfg.SyncScrollReportMs)

	for i := 1; i <= required; i++ {
		clock.Advance(d.cfg.SyncScrollReportMs)
		d.twistAcc[0] = vec2{X: 0, Y: -40}
		d.twistAcc[1] = vec2{X: 0, Y: 40}
		result := d.detectTwist(clock.now)
		if i < required {
			assert.Zerof(t, result, "tick %d: warmup not yet satisfied (%d/%d)", i, i, required)
		}
	}
	assert.GreaterOrEqual(t, d.history.len(), required)
}

func TestDetectTwistShapeGateRejectsHighTranslation(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	// Prime history/ema so the warmup + EMA-init steps are already past,
	// leaving only the shape gate's internal translation check live.
	cutoff := now - d.cfg.TwistInterferenceWindowMs + 1
	for i := 0; i < 4; i++ {
		d.history.push(cutoff + int64(i))
	}
	d.emaInitialized = true
	d.emaDeltaY = 80
	// This tick's translation is 0, so the EMA update gives 0.25*0 +
	// 0.75*20 = 15; avg_tr=15 > TwistInterferenceThres(8) trips the softer
	// 4.3.2 gate while staying under translation_allowed(40).
	d.emaTranslation = 20

	d.twistAcc[0] = vec2{X: 0, Y: -40}
	d.twistAcc[1] = vec2{X: 0, Y: 40}

	result := d.detectTwist(now)

	assert.Zero(t, result)
}

func TestDetectTwistDebounceGateRejectsImmediately(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	d.debounceStartMs = now - 5 // well within TwistFilterDebounceMs=40
	cutoff := now - d.cfg.TwistInterferenceWindowMs + 1
	for i := 0; i < 4; i++ {
		d.history.push(cutoff + int64(i))
	}

	d.twistAcc[0] = vec2{X: 0, Y: -40}
	d.twistAcc[1] = vec2{X: 0, Y: 40}

	result := d.detectTwist(now)

	assert.Zero(t, result)
}

func TestDetectTwistSteadyCooldownRejectsAfterRecentMovement(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	d.lastSignificantMovementMs = now - 10 // within SteadyCooldownMs=80
	cutoff := now - d.cfg.TwistInterferenceWindowMs + 1
	for i := 0; i < 4; i++ {
		d.history.push(cutoff + int64(i))
	}

	d.twistAcc[0] = vec2{X: 0, Y: -40}
	d.twistAcc[1] = vec2{X: 0, Y: 40}

	result := d.detectTwist(now)

	assert.Zero(t, result)
}

func TestDetectTwistAcceptsCleanOpposingSignal(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	cutoff := now - d.cfg.TwistInterferenceWindowMs + 1
	for i := 0; i < 4; i++ {
		d.history.push(cutoff + int64(i))
	}

	d.twistAcc[0] = vec2{X: 0, Y: -40}
	d.twistAcc[1] = vec2{X: 0, Y: 40}

	result := d.detectTwist(now)

	// deltaY=|s2y-s1y|=80, translation=0, avg_dy-twist_thres(30)=50 > max_mag(0)
	// => result = avg_dy - avg_tr = 80; s1y(-40) > s2y(40) is false, no sign flip.
	assert.Equal(t, 80.0, result)
	assert.Equal(t, now, d.lastTwistMs)
	assert.Equal(t, directionUp, d.lastTwistDirection)
}

func TestDetectTwistAllZeroReturnsImmediately(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	result := d.detectTwist(now)
	assert.Zero(t, result)
	assert.Zero(t, d.history.len())
}

// TestRunTwistTickEmitsWheelWithCoefAndReversal exercises §4.3.9's
// emission: the accepted result is scaled by twist_coef (and the
// acceleration multiplier, if enabled), truncated, and sign-flipped when
// twist_reversed is set.
func TestRunTwistTickEmitsWheelWithCoefAndReversal(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	cutoff := now - d.cfg.TwistInterferenceWindowMs + 1
	for i := 0; i < 4; i++ {
		d.history.push(cutoff + int64(i))
	}
	bus := d.bus.(*fakeBus)

	d.sens.twistCoef = 2.0
	d.sens.twistReversed = true
	d.twistAcc[0] = vec2{X: 0, Y: -40}
	d.twistAcc[1] = vec2{X: 0, Y: 40}

	d.runTwistTick(now)

	require.Len(t, bus.emits, 1)
	assert.Equal(t, AxisWheel, bus.emits[0].Axis)
	assert.Equal(t, int16(-160), bus.emits[0].Value) // 80 * 2.0, sign-flipped
	assert.True(t, bus.emits[0].Sync)
}

// TestRunTwistTickAccelMultiplierStacks checks the open-question wiring
// from §4.4/§4.3.9: twist_coef * twist_accel_value when acceleration is
// enabled.
func TestRunTwistTickAccelMultiplierStacks(t *testing.T) {
	d, now := acceptableTwistDevice(t)
	cutoff := now - d.cfg.TwistInterferenceWindowMs + 1
	for i := 0; i < 4; i++ {
		d.history.push(cutoff + int64(i))
	}
	bus := d.bus.(*fakeBus)

	d.sens.twistCoef = 1.0
	d.sens.twistAccelEnabled = true
	d.sens.twistAccelValue = 1.5
	d.twistAcc[0] = vec2{X: 0, Y: -40}
	d.twistAcc[1] = vec2{X: 0, Y: 40}

	d.runTwistTick(now)

	require.Len(t, bus.emits, 1)
	assert.Equal(t, int16(120), bus.emits[0].Value) // 80 * 1.0 * 1.5
}
