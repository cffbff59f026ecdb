// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import (
	"sync"
	"time"
)

// Scheduler is the work-queue abstraction from §5/§9: at most one pending
// deadline per handle, rescheduling replaces the prior deadline, cancel is
// safe whether or not a deadline is pending. Callbacks run on their own
// goroutine via time.AfterFunc but always re-enter the Device under its
// mutex, so they serialize with the intake callback per the single
// cooperative-context invariant.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Reschedule arms handle to fire fn after delay, replacing any previously
// pending deadline for the same handle.
func (s *Scheduler) Reschedule(handle string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[handle]; ok {
		t.Stop()
	}
	s.timers[handle] = time.AfterFunc(delay, fn)
}

// Cancel stops handle's pending deadline, if any. Safe to call when no
// deadline is pending.
func (s *Scheduler) Cancel(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[handle]; ok {
		t.Stop()
		delete(s.timers, handle)
	}
}

// CancelAll stops every pending deadline.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, t := range s.timers {
		t.Stop()
		delete(s.timers, h)
	}
}
