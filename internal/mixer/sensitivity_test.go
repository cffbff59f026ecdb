// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveCoefGetSetRoundTrip(t *testing.T) {
	d := newTestDevice(t, identityBallConfig(), nil, &fakeBus{}, nil, (&testClock{}).Now)
	d.SetMoveCoef(0.42)
	assert.Equal(t, 0.42, d.GetMoveCoef())
}

func TestTwistCoefGetSetRoundTrip(t *testing.T) {
	d := newTestDevice(t, identityBallConfig(), nil, &fakeBus{}, nil, (&testClock{}).Now)
	d.SetTwistCoef(2.5)
	assert.Equal(t, 2.5, d.GetTwistCoef())
}

// TestToggleTwistReverseFlipsAndPersists covers the deferred-save wiring:
// the scheduler runs on the real clock (time.AfterFunc), so the test uses
// a near-zero save delay and polls for the goroutine-driven save to land
// instead of trying to step a fake clock it doesn't use.
func TestToggleTwistReverseFlipsAndPersists(t *testing.T) {
	store := &fakeStore{}
	tunables := DefaultTunables()
	tunables.SettingsSaveDelayMs = 1

	d, err := New(Options{
		Config:   identityBallConfig(),
		Tunables: tunables,
		Store:    store,
	})
	require.NoError(t, err)

	assert.False(t, d.TwistReversed())
	got := d.ToggleTwistReverse()
	assert.True(t, got)
	assert.True(t, d.TwistReversed())

	require.Eventually(t, func() bool {
		return len(store.savedSens) > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, store.savedSens[len(store.savedSens)-1].TwistReversed)
}

// TestEnableAccelerationAppliesBufferedLoad covers the two-phase load: a
// persisted accel blob loaded before EnableAcceleration runs stays
// buffered until that call applies it.
func TestEnableAccelerationAppliesBufferedLoad(t *testing.T) {
	store := &fakeStore{accel: AccelBlob{Enabled: true, Value: 1.75}}
	clock := &testClock{}

	d, err := New(Options{
		Config: identityBallConfig(),
		Store:  store,
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	// Before EnableAcceleration, the loaded blob is buffered, not applied.
	assert.False(t, d.TwistAccelEnabled())

	d.EnableAcceleration()
	assert.True(t, d.TwistAccelEnabled())
	assert.Equal(t, 1.75, d.TwistAccelValue())
}

func TestLoadSensitivityFailureKeepsDefaults(t *testing.T) {
	store := &fakeStore{sensErr: errors.New("disk offline")}
	clock := &testClock{}

	d, err := New(Options{Config: identityBallConfig(), Store: store, Clock: clock.Now})
	require.NoError(t, err)

	assert.Equal(t, 1.0, d.GetMoveCoef())
	assert.Equal(t, 1.0, d.GetTwistCoef())
}

func TestToggleAccelActions(t *testing.T) {
	d := newTestDevice(t, identityBallConfig(), nil, &fakeBus{}, nil, (&testClock{}).Now)

	assert.True(t, d.ToggleAccel(AccelEnable))
	assert.False(t, d.ToggleAccel(AccelDisable))
	assert.True(t, d.ToggleAccel(AccelToggle))
	assert.False(t, d.ToggleAccel(AccelToggle))
}

// TestDriftSnapWorkedExample reproduces the worked example: a
// move_coef drifted one thousandth off its nearest multiple of step=10
// snaps exactly to that multiple when DRIFT_CORRECTION_THRESHOLD_TENTHS=20.
func TestDriftSnapWorkedExample(t *testing.T) {
	snapped := driftSnap(0.499, 10, 0.001, 20)
	assert.InDelta(t, 0.500, snapped, 1e-9)
}

func TestDriftSnapLeavesExactMultipleUntouched(t *testing.T) {
	snapped := driftSnap(0.50, 10, 0.001, 20)
	assert.InDelta(t, 0.50, snapped, 1e-9)
}

func TestDriftSnapClampsBelowMin(t *testing.T) {
	// Nearest multiple of step=10 below 0.004 is 0.000, which clamps up to min.
	snapped := driftSnap(0.004, 10, 0.01, 20)
	assert.InDelta(t, 0.01, snapped, 1e-9)
}
