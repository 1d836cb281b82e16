package protocol

import (
	"fmt"
	"strconv"
)

// Base is the numeric base a module family uses for its two-character address.
type Base int

const (
	Decimal Base = 10
	Hex     Base = 16
)

// MaxAddress returns the largest address that fits in two characters.
func (b Base) MaxAddress() int {
	if b == Hex {
		return 0xFF
	}
	return 99
}

// FormatAddress renders addr as a zero-padded two character string.
func FormatAddress(addr int, base Base) (string, error) {
	if addr < 0 || addr > base.MaxAddress() {
		return "", fmt.Errorf("address %d out of range 0..%d", addr, base.MaxAddress())
	}
	if base == Hex {
		return fmt.Sprintf("%02X", addr), nil
	}
	return fmt.Sprintf("%02d", addr), nil
}

// ParseAddress parses a two character address token.
func ParseAddress(s string, base Base) (int, error) {
	if len(s) != 2 {
		return 0, malformed("address", s, fmt.Errorf("expected 2 characters, got %d", len(s)))
	}
	v, err := strconv.ParseUint(s, int(base), 8)
	if err != nil {
		return 0, malformed("address", s, err)
	}
	if int(v) > base.MaxAddress() {
		return 0, malformed("address", s, fmt.Errorf("address %d out of range", v))
	}
	return int(v), nil
}
