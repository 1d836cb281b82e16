package calibration

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned for a calibration type other than linear or quadratic.
	ErrUnknownKind = errors.New("unknown calibration type")
	// ErrInsufficientStandards is returned when fewer than two standards are given.
	ErrInsufficientStandards = errors.New("at least 2 standards are required")
	// ErrNotFound is returned for a calibration name the registry does not hold.
	ErrNotFound = errors.New("calibration not found")
	// ErrActive is returned when deleting the active calibration.
	ErrActive = errors.New("calibration is active")
)

// ValidationError rejects a calibration before any state is changed.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" && e.Err != nil {
		return fmt.Sprintf("invalid calibration %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid calibration %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
