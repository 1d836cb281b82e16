package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfigCode is returned when a wire code is not a member of its code set.
	ErrInvalidConfigCode = errors.New("invalid config code")
	// ErrMalformed is returned when a payload does not have the expected shape.
	ErrMalformed = errors.New("malformed payload")
)

// DecodeError describes a wire field that could not be decoded.
type DecodeError struct {
	Field string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func invalidCode(field, value string) error {
	return &DecodeError{Field: field, Value: value, Err: ErrInvalidConfigCode}
}

func malformed(field, value string, err error) error {
	if err == nil {
		err = ErrMalformed
	} else {
		err = fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &DecodeError{Field: field, Value: value, Err: err}
}
