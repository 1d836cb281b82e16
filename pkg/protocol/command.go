package protocol

import (
	"fmt"
	"strings"
)

// Command prefixes.
const (
	PrefixData   = '#'
	PrefixQuery  = '$'
	PrefixSet    = '%'
	PrefixOK     = '!'
	PrefixValue  = '>'
	PrefixReject = '?'
)

// Function digits following the address in "$AA<n>" queries.
const (
	FnSpanCalibration   = "0"
	FnOffsetCalibration = "1"
	FnConfig            = "2"
	FnCJCStatus         = "3"
	FnSyncData          = "4"
	FnCurrentOutput     = "8"
	FnFirmware          = "F"
	FnName              = "M"
)

// Family describes a module type on the bus.
type Family struct {
	Model string
	Base  Base
}

var (
	// Family4011 is the thermocouple input module.
	Family4011 = Family{Model: "4011", Base: Decimal}
	// Family4021 is the analog output module.
	Family4021 = Family{Model: "4021", Base: Hex}
	// Family4520 is the RS-232/RS-485 converter.
	Family4520 = Family{Model: "4520", Base: Decimal}
)

// Query builds "<prefix>AA<fn>" for the given address.
func (f Family) Query(prefix byte, addr int, fn string) ([]byte, error) {
	a, err := FormatAddress(addr, f.Base)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.Grow(3 + len(fn))
	b.WriteByte(prefix)
	b.WriteString(a)
	b.WriteString(fn)
	return []byte(b.String()), nil
}

// Name builds the "$AAM" module name query.
func (f Family) Name(addr int) ([]byte, error) { return f.Query(PrefixQuery, addr, FnName) }

// Config builds the "$AA2" configuration status query.
func (f Family) Config(addr int) ([]byte, error) { return f.Query(PrefixQuery, addr, FnConfig) }

// Firmware builds the "$AAF" firmware version query.
func (f Family) Firmware(addr int) ([]byte, error) { return f.Query(PrefixQuery, addr, FnFirmware) }

// Data builds the "#AA" data query.
func (f Family) Data(addr int) ([]byte, error) { return f.Query(PrefixData, addr, "") }

// Output builds "#AA(data)" with value formatted as a zero-padded 00.000 field.
func (f Family) Output(addr int, value float64) ([]byte, error) {
	if value < 0 || value >= 100 {
		return nil, fmt.Errorf("output value %.3f out of range", value)
	}
	return f.Query(PrefixData, addr, fmt.Sprintf("%06.3f", value))
}

// Terminate returns a copy of cmd with the end-of-line byte appended.
func Terminate(cmd []byte, eol byte) []byte {
	out := make([]byte, len(cmd)+1)
	copy(out, cmd)
	out[len(cmd)] = eol
	return out
}
