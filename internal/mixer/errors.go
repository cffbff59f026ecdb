// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import "errors"

// Sentinel errors matching the error-kind taxonomy: ConfigInvalid,
// DegenerateGeometry, AlreadyInitialized, NotInitialized, PersistenceIO.
var (
	ErrConfigInvalid      = errors.New("mixer: invalid ball configuration")
	ErrDegenerateGeometry = errors.New("mixer: degenerate sensor geometry")
	ErrAlreadyInitialized = errors.New("mixer: device already initialized")
	ErrNotInitialized     = errors.New("mixer: device not initialized")
	ErrPersistenceIO      = errors.New("mixer: persistence I/O error")
)
