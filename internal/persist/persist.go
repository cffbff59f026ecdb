// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package persist implements the §6.4 persistence adapter: load/save of the
// two small typed blobs (sensitivity and acceleration) and the behavior
// list, all as fields of one JSON file. The blobs are not kept under
// separate p2sm_sens/p2sm_accel keys, and no legacy key layout is read. It is
// grounded on the teacher's calibration_handler.go, which marshals its
// result struct to an indented JSON file on disk — the same container
// format is used here, but coefficients are round-tripped through their
// raw IEEE-754 bit pattern (math.Float32bits) rather than JSON's decimal
// float encoding, so that save-then-load is bitwise exact as §8 requires.
package persist

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/relabs-tech/p2sm/internal/mixer"
)

// record is the on-disk shape. Floats are stored as their raw bit pattern
// so JSON's decimal round-trip never perturbs the value.
type record struct {
	SensitivitySaved bool   `json:"sensitivity_saved"`
	MoveCoefBits     uint32 `json:"move_coef_bits"`
	TwistCoefBits    uint32 `json:"twist_coef_bits"`
	TwistReversed    bool   `json:"twist_reversed"`

	AccelEnabled   bool   `json:"accel_enabled"`
	AccelValueBits uint32 `json:"accel_value_bits"`

	Behaviors []behaviorRecord `json:"behaviors,omitempty"`
}

// behaviorRecord mirrors mixer.BehaviorDescriptor field-for-field; kept as
// its own type so the on-disk shape doesn't silently change if the mixer
// struct grows a field persistence shouldn't round-trip.
type behaviorRecord struct {
	ID                  string  `json:"id"`
	DisplayName         string  `json:"display_name"`
	Step                int     `json:"step"`
	MinStep             int     `json:"min_step"`
	MaxStep             int     `json:"max_step"`
	MaxMultiplier       float64 `json:"max_multiplier"`
	Wrap                bool    `json:"wrap"`
	FeedbackOnLimit     bool    `json:"feedback_on_limit"`
	FeedbackDurationMs  int64   `json:"feedback_duration_ms"`
	FeedbackWrapPattern []int64 `json:"feedback_wrap_pattern,omitempty"`
	Scroll              bool    `json:"scroll"`
}

// FileStore is a JSON-file-backed mixer.PersistStore.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore persisting to path. The file is not
// required to exist yet; Load* return defaults until the first Save*.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) readLocked() (record, error) {
	var r record
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return r, err
	}
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("persist: corrupt store %s: %w", s.path, err)
	}
	return r, nil
}

func (s *FileStore) writeLocked(r record) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// LoadSensitivity implements mixer.PersistStore.
func (s *FileStore) LoadSensitivity() (mixer.SensitivityBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.readLocked()
	if err != nil {
		return mixer.SensitivityBlob{}, err
	}
	if !r.SensitivitySaved {
		return mixer.SensitivityBlob{MoveCoef: 1, TwistCoef: 1}, nil
	}
	return mixer.SensitivityBlob{
		MoveCoef:      math.Float32frombits(r.MoveCoefBits),
		TwistCoef:     math.Float32frombits(r.TwistCoefBits),
		TwistReversed: r.TwistReversed,
	}, nil
}

// SaveSensitivity implements mixer.PersistStore.
func (s *FileStore) SaveSensitivity(b mixer.SensitivityBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.readLocked()
	if err != nil {
		return err
	}
	r.SensitivitySaved = true
	r.MoveCoefBits = math.Float32bits(b.MoveCoef)
	r.TwistCoefBits = math.Float32bits(b.TwistCoef)
	r.TwistReversed = b.TwistReversed
	return s.writeLocked(r)
}

// LoadAccel implements mixer.PersistStore.
func (s *FileStore) LoadAccel() (mixer.AccelBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.readLocked()
	if err != nil {
		return mixer.AccelBlob{}, err
	}
	return mixer.AccelBlob{
		Enabled: r.AccelEnabled,
		Value:   math.Float32frombits(r.AccelValueBits),
	}, nil
}

// SaveAccel implements mixer.PersistStore.
func (s *FileStore) SaveAccel(b mixer.AccelBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.readLocked()
	if err != nil {
		return err
	}
	r.AccelEnabled = b.Enabled
	r.AccelValueBits = math.Float32bits(b.Value)
	return s.writeLocked(r)
}

// LoadBehaviors implements mixer.PersistStore.
func (s *FileStore) LoadBehaviors() ([]mixer.BehaviorDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	out := make([]mixer.BehaviorDescriptor, 0, len(r.Behaviors))
	for _, br := range r.Behaviors {
		out = append(out, mixer.BehaviorDescriptor{
			ID:                  mixer.BehaviorID(br.ID),
			DisplayName:         br.DisplayName,
			Step:                br.Step,
			MinStep:             br.MinStep,
			MaxStep:             br.MaxStep,
			MaxMultiplier:       br.MaxMultiplier,
			Wrap:                br.Wrap,
			FeedbackOnLimit:     br.FeedbackOnLimit,
			FeedbackDurationMs:  br.FeedbackDurationMs,
			FeedbackWrapPattern: br.FeedbackWrapPattern,
			Scroll:              br.Scroll,
		})
	}
	return out, nil
}

// SaveBehavior implements mixer.PersistStore, merging a single descriptor
// into the stored set by ID instead of replacing the whole set.
func (s *FileStore) SaveBehavior(b mixer.BehaviorDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.readLocked()
	if err != nil {
		return err
	}

	br := behaviorRecord{
		ID:                  string(b.ID),
		DisplayName:         b.DisplayName,
		Step:                b.Step,
		MinStep:             b.MinStep,
		MaxStep:             b.MaxStep,
		MaxMultiplier:       b.MaxMultiplier,
		Wrap:                b.Wrap,
		FeedbackOnLimit:     b.FeedbackOnLimit,
		FeedbackDurationMs:  b.FeedbackDurationMs,
		FeedbackWrapPattern: b.FeedbackWrapPattern,
		Scroll:              b.Scroll,
	}

	found := false
	for i, existing := range r.Behaviors {
		if existing.ID == br.ID {
			r.Behaviors[i] = br
			found = true
			break
		}
	}
	if !found {
		r.Behaviors = append(r.Behaviors, br)
	}
	return s.writeLocked(r)
}

// SaveBehaviors implements mixer.PersistStore.
func (s *FileStore) SaveBehaviors(list []mixer.BehaviorDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.readLocked()
	if err != nil {
		return err
	}
	r.Behaviors = make([]behaviorRecord, 0, len(list))
	for _, b := range list {
		r.Behaviors = append(r.Behaviors, behaviorRecord{
			ID:                  string(b.ID),
			DisplayName:         b.DisplayName,
			Step:                b.Step,
			MinStep:             b.MinStep,
			MaxStep:             b.MaxStep,
			MaxMultiplier:       b.MaxMultiplier,
			Wrap:                b.Wrap,
			FeedbackOnLimit:     b.FeedbackOnLimit,
			FeedbackDurationMs:  b.FeedbackDurationMs,
			FeedbackWrapPattern: b.FeedbackWrapPattern,
			Scroll:              b.Scroll,
		})
	}
	return s.writeLocked(r)
}
