package adam

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the factory bus speed of the ADAM modules.
	DefaultBaudRate = 9600
	// DefaultReadTimeout bounds a single read on the port.
	DefaultReadTimeout = 100 * time.Millisecond

	maxAnswer = 256
)

// Ports returns the serial ports present on the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// CandidatePorts orders ports for discovery: preferred first, then the
// available ports most recently enumerated first, without duplicates.
func CandidatePorts(preferred string, available []string) []string {
	seen := make(map[string]bool, len(available)+1)
	result := make([]string, 0, len(available)+1)
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		result = append(result, p)
	}
	add(preferred)
	for i := len(available) - 1; i >= 0; i-- {
		add(available[i])
	}
	return result
}

// Serial is a Transport over a local serial port configured 8N2 with DTR
// asserted, as the 4520 converter expects.
type Serial struct {
	baudRate    int
	readTimeout time.Duration

	mu   sync.Mutex
	conn serial.Port
	port string
	buf  [1]byte
}

// NewSerial creates a closed serial transport.
func NewSerial(baudRate int, readTimeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if readTimeout == 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Serial{
		baudRate:    baudRate,
		readTimeout: readTimeout,
	}
}

// Open opens port.
func (s *Serial) Open(port string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("already open on %s", s.port)
	}

	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}
	conn, err := serial.Open(port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	if err := conn.SetReadTimeout(s.readTimeout); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", port, err)
	}
	if err := conn.SetDTR(true); err != nil {
		conn.Close()
		return fmt.Errorf("failed to assert DTR on %s: %w", port, err)
	}

	s.conn = conn
	s.port = port
	return nil
}

// Close closes the port if open.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.port = ""
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsOpen reports whether the port is open.
func (s *Serial) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Write discards pending input and writes p.
func (s *Serial) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotOpen
	}
	if err := s.conn.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to reset input buffer: %w", err)
	}
	if _, err := s.conn.Write(p); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

// ReadUntil reads until delim, returning the bytes including delim. A read
// that times out before delim returns what was received and ErrReadTimeout.
func (s *Serial) ReadUntil(delim byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, ErrNotOpen
	}

	var out bytes.Buffer
	for out.Len() < maxAnswer {
		n, err := s.conn.Read(s.buf[:])
		if err != nil {
			return out.Bytes(), fmt.Errorf("failed to read: %w", err)
		}
		if n == 0 {
			return out.Bytes(), ErrReadTimeout
		}
		out.WriteByte(s.buf[0])
		if s.buf[0] == delim {
			return out.Bytes(), nil
		}
	}
	return out.Bytes(), fmt.Errorf("answer exceeds %d bytes", maxAnswer)
}
