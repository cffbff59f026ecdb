// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import (
	"fmt"

	"github.com/relabs-tech/p2sm/internal/geometry"
)

// Axis identifies a relative event axis on the host bus.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisWheel
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "REL_X"
	case AxisY:
		return "REL_Y"
	case AxisWheel:
		return "REL_WHEEL"
	default:
		return "REL_UNKNOWN"
	}
}

// SensorID identifies one of the two motion sensors mounted on the ball.
type SensorID int

const (
	Sensor1 SensorID = 0
	Sensor2 SensorID = 1
)

// Scope selects which coefficient a sensitivity-adjust command targets.
type Scope int

const (
	ScopePointer Scope = iota
	ScopeScroll
)

// Direction selects whether an adjust command increments or decrements.
type Direction int

const (
	DirectionInc Direction = iota
	DirectionDec
)

// AccelAction is the action carried by a toggle_accel command.
type AccelAction int

const (
	AccelEnable AccelAction = iota
	AccelDisable
	AccelToggle
)

// SensorPos is a sensor mount position, each component biased by 127
// (0 => -127 from ball center, 255 => +128).
type SensorPos [3]int

// vector returns the direction from ball-center to the mount.
func (p SensorPos) vector() geometry.Vec3 {
	return geometry.Vec3{
		X: float64(p[0] - 127),
		Y: float64(p[1] - 127),
		Z: float64(p[2] - 127),
	}
}

// BallConfig is the immutable per-device ball geometry, built once at init.
type BallConfig struct {
	Radius     int
	Sensor1Pos SensorPos
	Sensor2Pos SensorPos

	SyncReportMs              int64
	SyncScrollReportMs        int64
	TwistThres                float64
	TwistInterferenceThres    float64
	TwistInterferenceWindowMs int64

	// ScrollSuppressesPointer enables the optional mode in which a pointer
	// tick shortly after a twist emission is discarded to avoid cursor
	// drift from imperfect mechanical twists.
	ScrollSuppressesPointer         bool
	PointerAfterScrollActivationMs int64

	// DirectionFilterEnabled toggles §4.3.3; the direction filter is
	// config-enabled per spec.
	DirectionFilterEnabled bool

	TwistFeedbackDurationMs   int64
	TwistFeedbackThreshold    float64
	TwistFeedbackDelayMs      int64
}

func (c BallConfig) validate() error {
	if c.Radius < 1 || c.Radius > 127 {
		return fmt.Errorf("%w: ball_radius %d outside [1,127]", ErrConfigInvalid, c.Radius)
	}
	if c.Sensor1Pos == c.Sensor2Pos {
		return fmt.Errorf("%w: both sensors at the same position", ErrConfigInvalid)
	}
	if c.SyncReportMs <= 0 || c.SyncScrollReportMs <= 0 {
		return fmt.Errorf("%w: report intervals must be positive", ErrConfigInvalid)
	}
	return nil
}

// derivedGeometry holds the per-sensor surface points and rotation matrices
// computed once from BallConfig at init. Never mutated afterward.
type derivedGeometry struct {
	surfacePoint [2]geometry.Vec3
	rotation     [2]geometry.Mat2
	degenerate   [2]bool
}

// buildDerivedGeometry computes the surface point and rotation matrix for
// each sensor. A degenerate rotation (mount straight down or straight up,
// i.e. parallel or antiparallel to the pointing-down direction) is logged by the caller and left at the identity matrix,
// matching §4.1's "leave the caller's matrix untouched" guidance — there
// is no prior matrix at construction time, so identity is the safe stand-in
// until the geometry is reconfigured.
func buildDerivedGeometry(c BallConfig) (derivedGeometry, error) {
	var d derivedGeometry
	down := geometry.Vec3{X: 0, Y: 0, Z: -1}

	positions := [2]SensorPos{c.Sensor1Pos, c.Sensor2Pos}
	for i, pos := range positions {
		surface, err := geometry.LineSphereIntersection(float64(c.Radius), pos.vector())
		if err != nil {
			return derivedGeometry{}, fmt.Errorf("%w: sensor %d: %v", ErrConfigInvalid, i+1, err)
		}
		d.surfacePoint[i] = surface

		m, err := geometry.RotationMatrix(surface, down)
		if err != nil {
			d.degenerate[i] = true
			d.rotation[i] = geometry.Mat2{M00: 1, M11: 1}
			continue
		}
		d.rotation[i] = m
	}

	if d.surfacePoint[0] == d.surfacePoint[1] {
		return derivedGeometry{}, fmt.Errorf("%w: both sensors project to the same surface point", ErrConfigInvalid)
	}

	return d, nil
}

// Tunables are the compile-time constants from §6.6, exposed as fields so
// tests and alternate builds can override the suggested defaults.
type Tunables struct {
	RemainderTTLMs          int64
	TwistRemainderTTLMs     int64
	TwistFilterTTLMs        int64
	TwistFilterDebounceMs   int64
	DirectionFilterTTLMs    int64
	SteadyThres             float64
	SteadyCooldownMs        int64
	SignificantMovementMul  float64
	EMAAlphaPercent         float64
	DyOverTransNum          float64
	DyOverTransDen          float64
	TwistMaxValue           float64
	SyncWindowMs            int64
	SettingsSaveDelayMs     int64
	FeedbackMaxContinuousMs int64
	FeedbackCooldownMs      int64
	DriftCorrectionTenths   float64
}

// DefaultTunables returns the §6.6 suggested defaults.
func DefaultTunables() Tunables {
	return Tunables{
		RemainderTTLMs:          200,
		TwistRemainderTTLMs:     150,
		TwistFilterTTLMs:        120,
		TwistFilterDebounceMs:   40,
		DirectionFilterTTLMs:    200,
		SteadyThres:             3,
		SteadyCooldownMs:        80,
		SignificantMovementMul:  5,
		EMAAlphaPercent:         25,
		DyOverTransNum:          3,
		DyOverTransDen:          2,
		TwistMaxValue:           5000,
		SyncWindowMs:            10,
		SettingsSaveDelayMs:     500,
		FeedbackMaxContinuousMs: 400,
		FeedbackCooldownMs:      600,
		DriftCorrectionTenths:   20,
	}
}

// EventBus is the host event bus's outbound half (§6.3). Implementations
// live outside this package (internal/bus).
type EventBus interface {
	EmitRel(axis Axis, value int16, sync bool)
}

// FeedbackDriver is the haptic GPIO driver (§4.5, component G).
// Implementations live in internal/feedback.
type FeedbackDriver interface {
	Pulse(durationMs int64)
	Pattern(steps []int64)
}

// SensitivityBlob is the persisted payload for prefix p2sm_sens (§6.4).
type SensitivityBlob struct {
	MoveCoef      float32
	TwistCoef     float32
	TwistReversed bool
}

// AccelBlob is the persisted payload for prefix p2sm_accel (§6.4).
type AccelBlob struct {
	Enabled bool
	Value   float32
}

// PersistStore is the persistence adapter's interface (§6.4). Implementations
// live in internal/persist.
type PersistStore interface {
	LoadSensitivity() (SensitivityBlob, error)
	SaveSensitivity(SensitivityBlob) error
	LoadAccel() (AccelBlob, error)
	SaveAccel(AccelBlob) error

	// LoadBehaviors/SaveBehaviors persist the `p2sm behavior set` / `save` /
	// `load` shell commands' target: the full set of behavior descriptors,
	// keyed by ID. Supplemented from p2sm_shell.c's cmd_behavior_save/load.
	LoadBehaviors() ([]BehaviorDescriptor, error)
	SaveBehaviors([]BehaviorDescriptor) error

	// SaveBehavior persists a single descriptor, merging it into whatever
	// set is already stored (matched by ID) rather than replacing the
	// whole set. Backs `p2sm behavior save <id>` (§6.5), as distinct from
	// `p2sm behavior save all` which calls SaveBehaviors with every
	// registered descriptor.
	SaveBehavior(BehaviorDescriptor) error
}

// BehaviorID identifies a sensitivity-cycling behavior descriptor.
type BehaviorID string

// BehaviorDescriptor is the per-behavior tunable set from §3, including
// the DisplayName/Scroll fields supplemented from original_source/.
type BehaviorDescriptor struct {
	ID                 BehaviorID
	DisplayName        string
	Step               int // thousandths, e.g. 10 => 0.010
	MinStep            int
	MaxStep            int
	MaxMultiplier       float64
	Wrap               bool
	FeedbackOnLimit    bool
	FeedbackDurationMs int64
	FeedbackWrapPattern []int64
	Scroll             bool
}

func (b BehaviorDescriptor) validate() error {
	if b.Step <= 0 || b.MinStep <= 0 || b.MaxStep <= 0 || b.MaxMultiplier <= 0 {
		return fmt.Errorf("%w: behavior %s: step/min/max/mult must be positive", ErrConfigInvalid, b.ID)
	}
	if b.MinStep >= b.MaxStep {
		return fmt.Errorf("%w: behavior %s: min_step must be < max_step", ErrConfigInvalid, b.ID)
	}
	return nil
}
