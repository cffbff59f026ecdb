// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import "time"

const feedbackCooldownHandle = "twist-feedback-cooldown"

// onTwistEmitLocked implements §4.5's "twist-scroll feedback": accumulate
// |wheel_int| and trigger a pulse once it crosses twist_feedback_threshold,
// enforcing the max-continuous-duration + cooldown guard. Called with d.mu
// held, after a nonzero wheel emission.
func (d *Device) onTwistEmitLocked(wheelInt int16) {
	if d.feedback == nil || d.cfg.TwistFeedbackThreshold <= 0 {
		return
	}

	now := d.clock()
	if now < d.feedbackCooldownUntilMs {
		return
	}

	d.twistFeedbackAccumulator += absFloat(float64(wheelInt))
	if d.twistFeedbackAccumulator < d.cfg.TwistFeedbackThreshold {
		return
	}
	d.twistFeedbackAccumulator = 0

	if !d.feedbackBurstActive {
		d.feedbackBurstActive = true
		d.feedbackBurstStartMs = now
	} else if now-d.feedbackBurstStartMs >= d.tunables.FeedbackMaxContinuousMs {
		d.enterFeedbackCooldownLocked(now)
		return
	}

	d.feedback.Pulse(d.cfg.TwistFeedbackDurationMs)
}

func (d *Device) enterFeedbackCooldownLocked(now int64) {
	d.feedbackBurstActive = false
	d.feedbackCooldownUntilMs = now + d.tunables.FeedbackCooldownMs

	delay := time.Duration(d.tunables.FeedbackCooldownMs) * time.Millisecond
	d.scheduler.Reschedule(feedbackCooldownHandle, delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.feedbackCooldownUntilMs = 0
	})
}
