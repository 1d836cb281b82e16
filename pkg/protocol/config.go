package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Flag byte layout shared by the families. Bits 1..0 carry the data format,
// bits 5..2 the 4021 slew rate, bit 6 checksum enable and bit 7 the 4011
// integration time. Bits a family does not define are ignored on decode.
const (
	formatMask      = 0b0000_0011
	slewShift       = 2
	slewMask        = 0b0011_1100
	checksumBit     = 6
	integrationBit  = 7
	queryTokens     = 4
	setTokens       = 5
	tokenWidth      = 2
	setCommandBytes = 1 + setTokens*tokenWidth
)

// InputConfig is the ADAM-4011 configuration record.
type InputConfig struct {
	Address         int
	NewAddress      int
	Range           InputRange
	Baudrate        Baudrate
	IntegrationTime IntegrationTime
	Checksum        bool
	Format          InputFormat
}

// OutputConfig is the ADAM-4021 configuration record.
type OutputConfig struct {
	Address    int
	NewAddress int
	Range      OutputRange
	Baudrate   Baudrate
	SlewRate   SlewRate
	Checksum   bool
	Format     OutputFormat
}

// Validate checks that every code is a member of its code set.
func (c InputConfig) Validate() error {
	switch {
	case !c.Range.Valid():
		return invalidCode("input range", string(c.Range))
	case !c.Baudrate.Valid():
		return invalidCode("baudrate", string(c.Baudrate))
	case !c.IntegrationTime.Valid():
		return invalidCode("integration time", strconv.Itoa(int(c.IntegrationTime)))
	case !c.Format.Valid():
		return invalidCode("data format", strconv.Itoa(int(c.Format)))
	}
	return nil
}

// Flags packs the flag byte.
func (c InputConfig) Flags() byte {
	ff := byte(c.Format) & formatMask
	ff |= bit(c.Checksum) << checksumBit
	ff |= byte(c.IntegrationTime&1) << integrationBit
	return ff
}

// Encode builds the "%AANNTTCCFF" set command for the configuration.
func (c InputConfig) Encode() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return encodeSet(Family4011.Base, c.Address, c.NewAddress, string(c.Range), c.Baudrate, c.Flags())
}

func (c InputConfig) String() string {
	return fmt.Sprintf(`InputConfig(
    address = %d,
    new_address = %d,
    input_range = %s,
    baudrate = %s,
    integration_time = %s,
    checksum = %t,
    data_format = %s
)`, c.Address, c.NewAddress, c.Range, c.Baudrate, c.IntegrationTime, c.Checksum, c.Format)
}

// ParseInputConfig decodes either a "$AA2" answer ("!AATTCCFF") or a set
// command ("%AANNTTCCFF").
func ParseInputConfig(s string) (InputConfig, error) {
	f, err := splitConfig(s, Family4011.Base)
	if err != nil {
		return InputConfig{}, err
	}
	cfg := InputConfig{
		Address:         f.address,
		NewAddress:      f.newAddress,
		Range:           InputRange(f.rangeCode),
		Baudrate:        f.baudrate,
		IntegrationTime: IntegrationTime(f.flags>>integrationBit&1),
		Checksum:        f.flags>>checksumBit&1 == 1,
		Format:          InputFormat(f.flags & formatMask),
	}
	if err := cfg.Validate(); err != nil {
		return InputConfig{}, err
	}
	return cfg, nil
}

// Validate checks that every code is a member of its code set.
func (c OutputConfig) Validate() error {
	switch {
	case !c.Range.Valid():
		return invalidCode("output range", string(c.Range))
	case !c.Baudrate.Valid():
		return invalidCode("baudrate", string(c.Baudrate))
	case !c.SlewRate.Valid():
		return invalidCode("slew rate", fmt.Sprintf("%04b", uint8(c.SlewRate)))
	case !c.Format.Valid():
		return invalidCode("data format", fmt.Sprintf("%02b", uint8(c.Format)))
	}
	return nil
}

// Flags packs the flag byte.
func (c OutputConfig) Flags() byte {
	ff := byte(c.Format) & formatMask
	ff |= (byte(c.SlewRate) << slewShift) & slewMask
	ff |= bit(c.Checksum) << checksumBit
	return ff
}

// Encode builds the "%AANNTTCCFF" set command for the configuration.
func (c OutputConfig) Encode() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return encodeSet(Family4021.Base, c.Address, c.NewAddress, string(c.Range), c.Baudrate, c.Flags())
}

func (c OutputConfig) String() string {
	return fmt.Sprintf(`OutputConfig(
    address = %02X,
    new_address = %02X,
    output_range = %s,
    baudrate = %s,
    slewrate = %s,
    checksum = %t,
    data_format = %s
)`, c.Address, c.NewAddress, c.Range, c.Baudrate, c.SlewRate, c.Checksum, c.Format)
}

// ParseOutputConfig decodes either a "$AA2" answer ("!AATTCCFF") or a set
// command ("%AANNTTCCFF").
func ParseOutputConfig(s string) (OutputConfig, error) {
	f, err := splitConfig(s, Family4021.Base)
	if err != nil {
		return OutputConfig{}, err
	}
	cfg := OutputConfig{
		Address:    f.address,
		NewAddress: f.newAddress,
		Range:      OutputRange(f.rangeCode),
		Baudrate:   f.baudrate,
		SlewRate:   SlewRate((f.flags & slewMask) >> slewShift),
		Checksum:   f.flags>>checksumBit&1 == 1,
		Format:     OutputFormat(f.flags & formatMask),
	}
	if err := cfg.Validate(); err != nil {
		return OutputConfig{}, err
	}
	return cfg, nil
}

type configFields struct {
	address    int
	newAddress int
	rangeCode  string
	baudrate   Baudrate
	flags      byte
}

func splitConfig(s string, base Base) (configFields, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return configFields{}, malformed("config", s, nil)
	}
	isSet := s[0] == PrefixSet
	if s[0] != PrefixSet && s[0] != PrefixOK {
		return configFields{}, malformed("config prefix", s[:1], nil)
	}
	payload := strings.ToUpper(s[1:])

	want := queryTokens
	if isSet {
		want = setTokens
	}
	if len(payload) != want*tokenWidth {
		return configFields{}, malformed("config", s, fmt.Errorf("expected %d tokens", want))
	}
	tokens := make([]string, 0, want)
	for i := 0; i < len(payload); i += tokenWidth {
		tokens = append(tokens, payload[i:i+tokenWidth])
	}

	var f configFields
	var err error
	if f.address, err = ParseAddress(tokens[0], base); err != nil {
		return configFields{}, err
	}
	rest := tokens[1:]
	if isSet {
		if f.newAddress, err = ParseAddress(tokens[1], base); err != nil {
			return configFields{}, err
		}
		rest = tokens[2:]
	} else {
		// Query answers carry no new-address token.
		f.newAddress = f.address
	}
	f.rangeCode = rest[0]
	f.baudrate = Baudrate(rest[1])
	ff, err := strconv.ParseUint(rest[2], 16, 8)
	if err != nil {
		return configFields{}, malformed("flags", rest[2], err)
	}
	f.flags = byte(ff)
	return f, nil
}

func encodeSet(base Base, addr, newAddr int, rangeCode string, baud Baudrate, flags byte) ([]byte, error) {
	a, err := FormatAddress(addr, base)
	if err != nil {
		return nil, err
	}
	n, err := FormatAddress(newAddr, base)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.Grow(setCommandBytes)
	b.WriteByte(PrefixSet)
	b.WriteString(a)
	b.WriteString(n)
	b.WriteString(rangeCode)
	b.WriteString(string(baud))
	fmt.Fprintf(&b, "%02X", flags)
	return []byte(b.String()), nil
}

func bit(b bool) byte {
	if b {
		return 1
	}
	return 0
}
