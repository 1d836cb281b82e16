package adam

import (
	"errors"
	"fmt"
	"strings"
)

// Transport is a half-duplex byte channel to the module bus.
type Transport interface {
	Open(port string) error
	Close() error
	IsOpen() bool
	Write(p []byte) error
	ReadUntil(delim byte) ([]byte, error)
}

// Ensure Serial implements Transport.
var _ Transport = (*Serial)(nil)

// Ensure Simulator implements Transport.
var _ Transport = (*Simulator)(nil)

var (
	// ErrNotOpen is returned when the transport is used before Open.
	ErrNotOpen = errors.New("transport not open")
	// ErrReadTimeout is returned when no delimiter arrived within the read timeout.
	ErrReadTimeout = errors.New("read timeout")
	// ErrNotFound is returned when the modules were never found on a port.
	ErrNotFound = errors.New("modules not found")
)

// DeviceNotFoundError is returned when discovery exhausts the candidate ports.
type DeviceNotFoundError struct {
	Model   string
	Modules []string
	Ports   []string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("%s: modules [%s] not found on ports [%s]",
		e.Model, strings.Join(e.Modules, ", "), strings.Join(e.Ports, ", "))
}

func (e *DeviceNotFoundError) Unwrap() error {
	return ErrNotFound
}

// CommandError is a negative "?AA" answer from a module.
type CommandError struct {
	Command string
	Answer  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q rejected: %q", e.Command, e.Answer)
}
