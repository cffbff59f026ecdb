// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twistFeedbackDevice(t *testing.T) (*Device, *fakeFeedback, *testClock) {
	t.Helper()
	clock := &testClock{now: 1_000}
	fb := &fakeFeedback{}
	cfg := identityBallConfig()
	cfg.TwistFeedbackThreshold = 100
	cfg.TwistFeedbackDurationMs = 30
	d := newTestDevice(t, cfg, nil, &fakeBus{}, fb, clock.Now)
	return d, fb, clock
}

func TestOnTwistEmitAccumulatesBeforePulsing(t *testing.T) {
	d, fb, clock := twistFeedbackDevice(t)

	d.onTwistEmitLocked(40)
	assert.Empty(t, fb.pulses, "below threshold, no pulse yet")

	clock.Advance(10)
	d.onTwistEmitLocked(40)
	assert.Empty(t, fb.pulses)

	clock.Advance(10)
	d.onTwistEmitLocked(40) // accumulator now 120 >= 100
	require.Len(t, fb.pulses, 1)
	assert.Equal(t, int64(30), fb.pulses[0])
}

func TestOnTwistEmitEntersCooldownAfterMaxContinuous(t *testing.T) {
	d, fb, clock := twistFeedbackDevice(t)
	d.tunables.FeedbackMaxContinuousMs = 50
	d.tunables.FeedbackCooldownMs = 200

	d.onTwistEmitLocked(100) // first pulse, burst starts at now=1000
	require.Len(t, fb.pulses, 1)

	clock.Advance(60) // exceeds FeedbackMaxContinuousMs since burst start
	d.onTwistEmitLocked(100)

	// The second crossing falls past max-continuous, so it enters cooldown
	// instead of pulsing again.
	assert.Len(t, fb.pulses, 1)
	assert.Equal(t, clock.now+d.tunables.FeedbackCooldownMs, d.feedbackCooldownUntilMs)
	assert.False(t, d.feedbackBurstActive)
}

func TestOnTwistEmitSkippedDuringCooldown(t *testing.T) {
	d, fb, clock := twistFeedbackDevice(t)
	d.feedbackCooldownUntilMs = clock.now + 500

	d.onTwistEmitLocked(1000)

	assert.Empty(t, fb.pulses)
}

func TestOnTwistEmitNoopWithoutFeedbackDriver(t *testing.T) {
	clock := &testClock{}
	cfg := identityBallConfig()
	cfg.TwistFeedbackThreshold = 10
	d := newTestDevice(t, cfg, nil, &fakeBus{}, nil, clock.Now)

	assert.NotPanics(t, func() { d.onTwistEmitLocked(100) })
}
