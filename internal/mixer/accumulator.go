// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

// runPointerTick implements §4.2's pointer pipeline. Called with d.mu held.
func (d *Device) runPointerTick(now int64) {
	stale := now-d.lastEmitMs > d.tunables.RemainderTTLMs

	for i := 0; i < 2; i++ {
		r := d.raw[i]
		if r.X == 0 && r.Y == 0 {
			continue
		}

		rx, ry := d.derived.rotation[i].Apply(float64(r.X), float64(r.Y))

		d.twistAcc[i].X += rx
		d.twistAcc[i].Y += ry

		rx *= d.sens.moveCoef
		ry *= d.sens.moveCoef

		// stale is evaluated once per tick, before either sensor is
		// processed, matching pointer_2s_mixer.c: a stale tick replaces
		// the remainder on every sensor it touches, so the second sensor
		// processed in a stale tick overwrites the first's contribution
		// rather than adding to it.
		if stale {
			d.xRemainder = rx
			d.yRemainder = ry
		} else {
			d.xRemainder += rx
			d.yRemainder += ry
		}

		d.raw[i] = axisDelta{}
	}

	outX := truncInt16(d.xRemainder)
	outY := truncInt16(d.yRemainder)
	d.xRemainder -= float64(outX)
	d.yRemainder -= float64(outY)

	if absFloat(float64(outX)) > d.tunables.SteadyThres || absFloat(float64(outY)) > d.tunables.SteadyThres {
		d.lastSignificantMovementMs = now
	}

	suppress := d.cfg.ScrollSuppressesPointer && now-d.lastTwistEmitMs < d.cfg.PointerAfterScrollActivationMs
	if suppress {
		d.lastEmitMs = now
		return
	}

	haveX := outX != 0
	haveY := outY != 0
	if haveX || haveY {
		if haveX {
			d.emit(AxisX, outX, !haveY)
		}
		if haveY {
			d.emit(AxisY, outY, true)
		}
	}

	d.lastEmitMs = now
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
