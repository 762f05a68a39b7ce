// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a register argument is not valid for the
	// chip, e.g. a row index above 7 or an intensity above 15. Nothing is sent
	// to the bus.
	ErrOutOfRange = errors.New("max7219: argument out of range")

	// ErrOutOfBounds is returned when a pixel coordinate falls outside the
	// grid addressable by the cascade.
	ErrOutOfBounds = errors.New("max7219: coordinate out of bounds")

	// ErrBus matches any *BusError.
	ErrBus = errors.New("max7219: bus error")
)

// BusError is returned when a transaction on the underlying transport fails
// or is cancelled.
//
// After a BusError the chips may hold a partially shifted word sequence. The
// chain has no way to report which unit latched what, so the display must be
// re-initialized with Init before any further use.
type BusError struct {
	// Op is the operation that was running, e.g. "init" or "flush".
	Op  string
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("max7219: bus error during %s: %v", e.Op, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// Is reports ErrBus as matching so callers can test with errors.Is.
func (e *BusError) Is(target error) bool {
	return target == ErrBus
}

func outOfRange(format string, a ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrOutOfRange}, a...)...)
}

func outOfBounds(x, y int) error {
	return fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, y)
}
