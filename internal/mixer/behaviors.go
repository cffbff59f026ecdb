// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import "fmt"

// Behaviors returns the registered behavior descriptors, sorted by nothing
// in particular (callers that need a stable order, e.g. the shell's
// numeric IDs, should sort by ID themselves).
func (d *Device) Behaviors() []BehaviorDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]BehaviorDescriptor, 0, len(d.behaviors))
	for _, b := range d.behaviors {
		out = append(out, b)
	}
	return out
}

// Behavior looks up a single descriptor by ID.
func (d *Device) Behavior(id BehaviorID) (BehaviorDescriptor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.behaviors[id]
	return b, ok
}

// SetBehaviorConfig replaces a registered behavior's tunables in place,
// preserving its ID/DisplayName/Scroll (the shell's `behavior set` command
// only carries the numeric/boolean tunables, per p2sm_shell.c's
// cmd_behavior_set, which copies display_name/scroll from the existing
// config before applying the rest).
func (d *Device) SetBehaviorConfig(id BehaviorID, cfg BehaviorDescriptor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.behaviors[id]
	if !ok {
		return fmt.Errorf("%w: unknown behavior %q", ErrConfigInvalid, id)
	}

	cfg.ID = existing.ID
	cfg.DisplayName = existing.DisplayName
	cfg.Scroll = existing.Scroll

	if err := cfg.validate(); err != nil {
		return err
	}
	d.behaviors[id] = cfg
	return nil
}

// SaveBehavior persists a single registered behavior descriptor by ID,
// backing `p2sm behavior save <id>` (§6.5) as distinct from `save all`.
func (d *Device) SaveBehavior(id BehaviorID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.store == nil {
		return ErrNotInitialized
	}
	b, ok := d.behaviors[id]
	if !ok {
		return fmt.Errorf("%w: unknown behavior %q", ErrConfigInvalid, id)
	}
	return d.store.SaveBehavior(b)
}

// SaveBehaviors persists every registered behavior descriptor.
func (d *Device) SaveBehaviors() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.store == nil {
		return ErrNotInitialized
	}
	list := make([]BehaviorDescriptor, 0, len(d.behaviors))
	for _, b := range d.behaviors {
		list = append(list, b)
	}
	return d.store.SaveBehaviors(list)
}

// LoadBehaviors reloads and applies persisted behavior descriptors,
// matching existing registrations by ID; unknown IDs in the stored set are
// ignored, and registered behaviors absent from the stored set keep their
// current configuration.
func (d *Device) LoadBehaviors() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.store == nil {
		return ErrNotInitialized
	}
	list, err := d.store.LoadBehaviors()
	if err != nil {
		return err
	}
	for _, b := range list {
		if _, ok := d.behaviors[b.ID]; ok {
			d.behaviors[b.ID] = b
		}
	}
	return nil
}
