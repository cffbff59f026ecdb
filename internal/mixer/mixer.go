// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mixer implements the two-sensor ball mixer fusion core: geometry
// projection, event accumulation, the twist detector, and the sensitivity
// state with drift correction and persistence. It maps the single-threaded
// cooperative scheduling model onto a mutex-guarded Device, one of the
// concurrency strategies spec.md explicitly allows.
package mixer

import (
	"log"
	"sync"
	"time"
)

type vec2 struct {
	X, Y float64
}

type twistDirection int

const (
	directionNone twistDirection = iota
	directionUp
	directionDown
)

// axisDelta is the accumulator's raw per-sensor per-axis state (§3).
type axisDelta struct {
	X, Y int16
}

// sensitivityState is the mutable, persisted coefficient state (§3, §4.4).
type sensitivityState struct {
	moveCoef     float64
	twistCoef    float64
	twistEnabled bool
	twistReversed bool

	twistAccelEnabled bool
	twistAccelValue   float64
}

// Device is the mixer's process-global singleton (§5, §9's "OnceCell-style
// lazy, single-assignment container"). All mutable state lives here, guarded
// by mu; every public method acquires mu for the duration of its critical
// section, matching the "OS thread with a mutex held throughout critical
// sections" strategy spec.md names as valid.
type Device struct {
	mu sync.Mutex

	cfg      BallConfig
	derived  derivedGeometry
	tunables Tunables

	bus       EventBus
	store     PersistStore
	feedback  FeedbackDriver
	scheduler *Scheduler

	behaviors map[BehaviorID]BehaviorDescriptor

	// clock returns milliseconds since an arbitrary epoch. Overridable by
	// tests; defaults to a monotonic wall-clock reading.
	clock func() int64

	// accumulator state (§4.2)
	raw                [2]axisDelta
	twistAcc           [2]vec2
	xRemainder         float64
	yRemainder         float64
	wheelRemainder     float64
	lastEmitMs         int64
	lastTwistEmitMs    int64
	lastSensorReportMs [2]int64
	lastSignificantMovementMs int64

	// twist detector state (§4.3)
	history             *twistHistory
	emaDeltaY           float64
	emaTranslation      float64
	emaInitialized      bool
	lastTwistDirection  twistDirection
	debounceStartMs     int64
	lastTwistMs         int64

	// haptic accumulator for twist feedback (§4.5)
	twistFeedbackAccumulator float64
	feedbackCooldownUntilMs  int64
	feedbackBurstStartMs     int64
	feedbackBurstActive      bool

	// sensitivity state (§3, §4.4)
	sens sensitivityState

	// accel settings loaded from persistence before EnableAcceleration ran
	// are buffered here per the two-phase load supplemented from
	// original_source/behavior_p2sm_accel_adj.c.
	accelInitialized   bool
	pendingAccelBlob   *AccelBlob
}

var (
	globalMu     sync.RWMutex
	globalDevice *Device
)

// Options configures a new Device.
type Options struct {
	Config     BallConfig
	Tunables   Tunables
	Bus        EventBus
	Store      PersistStore
	Feedback   FeedbackDriver
	Behaviors  []BehaviorDescriptor
	Clock      func() int64
}

// New builds a Device from opts without installing it as the process
// singleton. Most callers want Init, which also installs it.
func New(opts Options) (*Device, error) {
	if err := opts.Config.validate(); err != nil {
		return nil, err
	}

	derived, err := buildDerivedGeometry(opts.Config)
	if err != nil {
		return nil, err
	}

	tunables := opts.Tunables
	if (tunables == Tunables{}) {
		tunables = DefaultTunables()
	}

	clock := opts.Clock
	if clock == nil {
		clock = monotonicMsFunc
	}

	behaviors := make(map[BehaviorID]BehaviorDescriptor, len(opts.Behaviors))
	for _, b := range opts.Behaviors {
		if err := b.validate(); err != nil {
			return nil, err
		}
		behaviors[b.ID] = b
	}

	for i, deg := range derived.degenerate {
		if deg {
			log.Printf("mixer: sensor %d rotation is degenerate (%v); using identity until reconfigured", i+1, ErrDegenerateGeometry)
		}
	}

	d := &Device{
		cfg:       opts.Config,
		derived:   derived,
		tunables:  tunables,
		bus:       opts.Bus,
		store:     opts.Store,
		feedback:  opts.Feedback,
		scheduler: NewScheduler(),
		behaviors: behaviors,
		clock:     clock,
		history:   newTwistHistory(historyCapacity(opts.Config, tunables)),
		sens: sensitivityState{
			moveCoef:  1.0,
			twistCoef: 1.0,
		},
	}

	if d.store != nil {
		d.loadSensitivityLocked()
	}

	return d, nil
}

func monotonicMsFunc() int64 {
	return time.Now().UnixMilli()
}

// Init builds a Device and installs it as the process-global singleton.
// A second call fails with ErrAlreadyInitialized; the first instance keeps
// serving.
func Init(opts Options) (*Device, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalDevice != nil {
		return nil, ErrAlreadyInitialized
	}

	d, err := New(opts)
	if err != nil {
		return nil, err
	}

	globalDevice = d
	return d, nil
}

// Get returns the process-global Device, or ErrNotInitialized if Init has
// not run yet.
func Get() (*Device, error) {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalDevice == nil {
		return nil, ErrNotInitialized
	}
	return globalDevice, nil
}

// resetGlobalForTest clears the process-global singleton. Test-only.
func resetGlobalForTest() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalDevice = nil
}

func historyCapacity(cfg BallConfig, t Tunables) int {
	n := cfg.TwistInterferenceWindowMs/cfg.SyncScrollReportMs + 1
	if n < 1 {
		n = 1
	}
	return int(n)
}

// HandleEvent is the event bus intake (§6.1). The raw delta is consumed
// entirely here; callers must not forward it to the host themselves,
// matching invariant #1's "after any intake call the event carries no
// further value/sync for the host to act on".
func (d *Device) HandleEvent(axis Axis, sensor SensorID, value int16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock()
	d.lastSensorReportMs[sensor] = now

	switch axis {
	case AxisX:
		d.raw[sensor].X += value
	case AxisY:
		d.raw[sensor].Y += value
	default:
		return
	}

	if diff := d.lastSensorReportMs[0] - d.lastSensorReportMs[1]; diff > d.tunables.SyncWindowMs || diff < -d.tunables.SyncWindowMs {
		d.raw = [2]axisDelta{}
		d.twistAcc = [2]vec2{}
		return
	}

	if now-d.lastEmitMs > d.cfg.SyncReportMs {
		d.runPointerTick(now)
	}
	if d.sens.twistEnabled && now-d.lastTwistEmitMs > d.cfg.SyncScrollReportMs {
		d.runTwistTick(now)
	}
}

// SetBus (re)wires the event bus adapter after construction, for callers
// whose bus implementation needs a constructed Device to subscribe against
// (internal/bus.New takes the Device to wire HandleEvent as its callback).
func (d *Device) SetBus(bus EventBus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bus = bus
}

func (d *Device) emit(axis Axis, value int16, sync bool) {
	if d.bus == nil {
		return
	}
	d.bus.EmitRel(axis, value, sync)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncInt16(v float64) int16 {
	return int16(v)
}
