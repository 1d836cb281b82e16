package protocol

import "fmt"

// InputRange is the ADAM-4011 input range code.
type InputRange string

const (
	InputRange15mV  InputRange = "00"
	InputRange50mV  InputRange = "01"
	InputRange100mV InputRange = "02"
	InputRange500mV InputRange = "03"
	InputRange1V    InputRange = "04"
	InputRange2V5   InputRange = "05"
	InputRange20mA  InputRange = "06"
	InputRange4to20 InputRange = "07"
	InputRangeTypeJ InputRange = "0E"
	InputRangeTypeK InputRange = "0F"
	InputRangeTypeT InputRange = "10"
	InputRangeTypeE InputRange = "11"
	InputRangeTypeR InputRange = "12"
	InputRangeTypeS InputRange = "13"
	InputRangeTypeB InputRange = "14"
)

var inputRanges = map[InputRange]string{
	InputRange15mV:  "± 15 mV",
	InputRange50mV:  "± 50 mV",
	InputRange100mV: "± 100 mV",
	InputRange500mV: "± 500 mV",
	InputRange1V:    "± 1 V",
	InputRange2V5:   "± 2.5 V",
	InputRange20mA:  "20 mA",
	InputRange4to20: "4~20mA",
	InputRangeTypeJ: "Type J Thermocouple 0 - 760 °C",
	InputRangeTypeK: "Type K Thermocouple 0 - 1370 °C",
	InputRangeTypeT: "Type T Thermocouple 100 - 400 °C",
	InputRangeTypeE: "Type E Thermocouple 0 - 1000 °C",
	InputRangeTypeR: "Type R Thermocouple 500 - 1750 °C",
	InputRangeTypeS: "Type S Thermocouple 500 - 1750 °C",
	InputRangeTypeB: "Type B Thermocouple 500 - 1800 °C",
}

func (c InputRange) Valid() bool { _, ok := inputRanges[c]; return ok }

func (c InputRange) String() string { return describe(string(c), inputRanges[c]) }

// OutputRange is the ADAM-4021 output range code.
type OutputRange string

const (
	OutputRange0to20mA OutputRange = "30"
	OutputRange4to20mA OutputRange = "31"
	OutputRange0to10V  OutputRange = "32"
)

var outputRanges = map[OutputRange]string{
	OutputRange0to20mA: "0 to 20 mA",
	OutputRange4to20mA: "4 to 20 mA",
	OutputRange0to10V:  "0 to 10 V",
}

func (c OutputRange) Valid() bool { _, ok := outputRanges[c]; return ok }

func (c OutputRange) String() string { return describe(string(c), outputRanges[c]) }

// Baudrate is the bus baud rate code shared by all families.
type Baudrate string

const (
	Baud1200  Baudrate = "03"
	Baud2400  Baudrate = "04"
	Baud4800  Baudrate = "05"
	Baud9600  Baudrate = "06"
	Baud19200 Baudrate = "07"
	Baud38400 Baudrate = "08"
)

var baudrates = map[Baudrate]int{
	Baud1200:  1200,
	Baud2400:  2400,
	Baud4800:  4800,
	Baud9600:  9600,
	Baud19200: 19200,
	Baud38400: 38400,
}

func (c Baudrate) Valid() bool { _, ok := baudrates[c]; return ok }

// Rate returns the baud rate in bits per second, or 0 for an unknown code.
func (c Baudrate) Rate() int { return baudrates[c] }

func (c Baudrate) String() string {
	if r, ok := baudrates[c]; ok {
		return fmt.Sprintf("%s: %d", string(c), r)
	}
	return describe(string(c), "")
}

// BaudrateFor returns the code for a baud rate.
func BaudrateFor(rate int) (Baudrate, bool) {
	for c, r := range baudrates {
		if r == rate {
			return c, true
		}
	}
	return "", false
}

// IntegrationTime is the ADAM-4011 integration time bit.
type IntegrationTime uint8

const (
	Integration50ms IntegrationTime = 0
	Integration60ms IntegrationTime = 1
)

var integrationTimes = map[IntegrationTime]string{
	Integration50ms: "50 ms (Operation under 60 Hz power)",
	Integration60ms: "60 ms (Operation under 50 Hz power)",
}

func (c IntegrationTime) Valid() bool { _, ok := integrationTimes[c]; return ok }

func (c IntegrationTime) String() string {
	return describe(fmt.Sprintf("%d", uint8(c)), integrationTimes[c])
}

// InputFormat is the ADAM-4011 data format (flag bits 1..0).
type InputFormat uint8

const (
	InputEngineering InputFormat = 0b00
	InputPercentFSR  InputFormat = 0b01
	InputTwosComp    InputFormat = 0b10
	InputOhms        InputFormat = 0b11
)

var inputFormats = map[InputFormat]string{
	InputEngineering: "Engineering units",
	InputPercentFSR:  "% of FSR",
	InputTwosComp:    "two's complement of hexadecimal",
	InputOhms:        "Ohms (for 4013 and 4015)",
}

func (c InputFormat) Valid() bool { _, ok := inputFormats[c]; return ok }

func (c InputFormat) String() string {
	return describe(fmt.Sprintf("%02b", uint8(c)), inputFormats[c])
}

// OutputFormat is the ADAM-4021 data format (flag bits 1..0).
type OutputFormat uint8

const (
	OutputEngineering OutputFormat = 0b00
	OutputPercentFSR  OutputFormat = 0b01
	OutputHex         OutputFormat = 0b10
)

var outputFormats = map[OutputFormat]string{
	OutputEngineering: "Engineering units",
	OutputPercentFSR:  "% of FSR",
	OutputHex:         "hexadecimal",
}

func (c OutputFormat) Valid() bool { _, ok := outputFormats[c]; return ok }

func (c OutputFormat) String() string {
	return describe(fmt.Sprintf("%02b", uint8(c)), outputFormats[c])
}

// SlewRate is the ADAM-4021 slew rate (flag bits 5..2).
type SlewRate uint8

var slewRates = [...]string{
	"Immediate change",
	"0.0625 V/sec 0.125 mA/sec",
	"0.125 V/sec 0.250 mA/sec",
	"0.250 V/sec 0.500 mA/sec",
	"0.500 V/sec 1.000 mA/sec",
	"1.000 V/sec 2.000 mA/sec",
	"2.000 V/sec 4.000 mA/sec",
	"4.000 V/sec 8.000 mA/sec",
	"8.000 V/sec 16.00 mA/sec",
	"16.00 V/sec 32.00 mA/sec",
	"32.00 V/sec 64.00 mA/sec",
	"64.00 V/sec 128.0 mA/sec",
}

// SlewImmediate disables slew limiting.
const SlewImmediate SlewRate = 0

func (c SlewRate) Valid() bool { return int(c) < len(slewRates) }

func (c SlewRate) String() string {
	desc := ""
	if c.Valid() {
		desc = slewRates[c]
	}
	return describe(fmt.Sprintf("%04b", uint8(c)), desc)
}

func describe(code, desc string) string {
	if desc == "" {
		return code + ": unknown"
	}
	return code + ": " + desc
}
