package heater

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by Start when the driver cannot tick.
var ErrNotReady = errors.New("heater loop not ready")

// Loop operations that can fail during a tick.
const (
	OpRead  = "read"
	OpWrite = "write"
)

// LoopError is a failed tick. The loop keeps running after one.
type LoopError struct {
	Op  string
	Err error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("heater loop %s: %v", e.Op, e.Err)
}

func (e *LoopError) Unwrap() error {
	return e.Err
}
