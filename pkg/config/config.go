package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial       SerialConfig       `yaml:"serial"`
	Modules      ModulesConfig      `yaml:"modules"`
	Heater       HeaterConfig       `yaml:"heater"`
	Thermocouple ThermocoupleConfig `yaml:"thermocouple"`
	ColdJunction ColdJunctionConfig `yaml:"cold_junction"`
	Calibration  CalibrationConfig  `yaml:"calibration"`
	Measurement  MeasurementConfig  `yaml:"measurement"`
	Mock         MockConfig         `yaml:"mock"`
	Log          LogConfig          `yaml:"log"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port        string        `yaml:"port"`       // Preferred port, probed first
	Candidates  []string      `yaml:"candidates"` // Extra ports probed after Port; empty = enumerate
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ModulesConfig contains bus addresses of the attached modules.
type ModulesConfig struct {
	InputAddress  int `yaml:"input_address"`  // ADAM-4011
	OutputAddress int `yaml:"output_address"` // ADAM-4021
}

// HeaterConfig contains ramp parameters.
type HeaterConfig struct {
	DefaultSpeed float64 `yaml:"default_speed"` // Ramp rate, mV/s of output
	BufferSize   int     `yaml:"buffer_size"`   // Per-subscriber event buffer
}

// ThermocoupleConfig contains the EMF to temperature polynomial and the
// inverse search parameters.
type ThermocoupleConfig struct {
	Coefficients  []float64 `yaml:"coefficients"` // c0 first, T(E) = c0 + c1*E + ...
	BracketLow    float64   `yaml:"bracket_low"`  // mV
	BracketHigh   float64   `yaml:"bracket_high"` // mV
	Tolerance     float64   `yaml:"tolerance"`    // °C
	MaxIterations int       `yaml:"max_iterations"`
}

// ColdJunctionConfig contains cold-junction parameters.
type ColdJunctionConfig struct {
	Temperature float64 `yaml:"temperature"` // Used when no hardware is attached, °C
}

// CalibrationConfig contains calibration storage settings.
type CalibrationConfig struct {
	Directory string `yaml:"directory"`
	Active    string `yaml:"active"`
	Enabled   bool   `yaml:"enabled"`
}

// MeasurementConfig contains run metadata defaults.
type MeasurementConfig struct {
	Operator  string `yaml:"operator"`
	Sample    string `yaml:"sample"`
	OutputDir string `yaml:"output_dir"`
}

// MockConfig contains no-hardware mode and simulator settings.
type MockConfig struct {
	Enabled        bool          `yaml:"enabled"`         // No-hardware mode
	Interval       time.Duration `yaml:"interval"`        // Synthetic tick pacing
	Ports          []string      `yaml:"ports"`           // Ports the simulator answers on; empty = any
	Gain           float64       `yaml:"gain"`            // Steady-state EMF per output unit (mV/V)
	TimeConstant   time.Duration `yaml:"time_constant"`   // Thermal lag
	NoiseLevel     float64       `yaml:"noise_level"`     // mV
	CJCTemperature float64       `yaml:"cjc_temperature"` // °C
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// MetricsConfig contains the prometheus endpoint settings.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // Empty disables the endpoint
}

// DefaultCoefficients is the type A-1 thermocouple polynomial, c0 first.
var DefaultCoefficients = []float64{
	0.9643027,
	79.495086,
	-4.9990310,
	0.634176,
	-0.047440967,
	0.0021811337,
	-5.8324228e-05,
	8.2433725e-07,
	-4.5928480e-09,
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "COM1", // Default for Windows, should be "/dev/ttyUSB0" on Linux
			BaudRate:    9600,
			ReadTimeout: 100 * time.Millisecond,
		},
		Modules: ModulesConfig{
			InputAddress:  1,
			OutputAddress: 3,
		},
		Heater: HeaterConfig{
			DefaultSpeed: 5,
			BufferSize:   100,
		},
		Thermocouple: ThermocoupleConfig{
			Coefficients:  append([]float64(nil), DefaultCoefficients...),
			BracketLow:    -1,
			BracketHigh:   5,
			Tolerance:     1e-4,
			MaxIterations: 100,
		},
		ColdJunction: ColdJunctionConfig{
			Temperature: 25,
		},
		Calibration: CalibrationConfig{
			Directory: "calibrations",
		},
		Measurement: MeasurementConfig{
			Operator:  "Operator",
			OutputDir: ".",
		},
		Mock: MockConfig{
			Interval:       100 * time.Millisecond,
			Gain:           0.5,
			TimeConstant:   5 * time.Second,
			NoiseLevel:     0.001,
			CJCTemperature: 25,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values the core cannot work with.
func (c *Config) Validate() error {
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	// The 4011 formats its address in decimal, the 4021 in hex.
	if a := c.Modules.InputAddress; a < 0 || a > 99 {
		return fmt.Errorf("modules.input_address out of range 0..99: %d", a)
	}
	if a := c.Modules.OutputAddress; a < 0 || a > 0xFF {
		return fmt.Errorf("modules.output_address out of range 0..255: %d", a)
	}
	if c.Modules.InputAddress == c.Modules.OutputAddress {
		return fmt.Errorf("input and output modules share address %d", c.Modules.InputAddress)
	}

	tc := c.Thermocouple
	if len(tc.Coefficients) == 0 {
		return fmt.Errorf("thermocouple.coefficients must not be empty")
	}
	for i, v := range tc.Coefficients {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("thermocouple.coefficients[%d] is not finite: %v", i, v)
		}
	}
	if tc.BracketLow >= tc.BracketHigh {
		return fmt.Errorf("thermocouple bracket [%g, %g] is empty", tc.BracketLow, tc.BracketHigh)
	}
	if tc.Tolerance <= 0 {
		return fmt.Errorf("thermocouple.tolerance must be positive, got %g", tc.Tolerance)
	}
	if tc.MaxIterations <= 0 {
		return fmt.Errorf("thermocouple.max_iterations must be positive, got %d", tc.MaxIterations)
	}
	if c.Heater.DefaultSpeed < 0 {
		return fmt.Errorf("heater.default_speed must not be negative, got %g", c.Heater.DefaultSpeed)
	}
	return nil
}

// ensureDefaults restores fields an explicit zero or empty value leaves unusable.
// Temperatures and the ramp speed keep their zeros.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}

	if c.Modules.InputAddress == 0 && c.Modules.OutputAddress == 0 {
		c.Modules = def.Modules
	}

	if c.Heater.BufferSize == 0 {
		c.Heater.BufferSize = def.Heater.BufferSize
	}

	if len(c.Thermocouple.Coefficients) == 0 {
		c.Thermocouple.Coefficients = def.Thermocouple.Coefficients
	}
	if c.Thermocouple.BracketLow == 0 && c.Thermocouple.BracketHigh == 0 {
		c.Thermocouple.BracketLow = def.Thermocouple.BracketLow
		c.Thermocouple.BracketHigh = def.Thermocouple.BracketHigh
	}
	if c.Thermocouple.Tolerance == 0 {
		c.Thermocouple.Tolerance = def.Thermocouple.Tolerance
	}
	if c.Thermocouple.MaxIterations == 0 {
		c.Thermocouple.MaxIterations = def.Thermocouple.MaxIterations
	}

	if c.Calibration.Directory == "" {
		c.Calibration.Directory = def.Calibration.Directory
	}

	if c.Measurement.Operator == "" {
		c.Measurement.Operator = def.Measurement.Operator
	}
	if c.Measurement.OutputDir == "" {
		c.Measurement.OutputDir = def.Measurement.OutputDir
	}

	if c.Mock.Interval == 0 {
		c.Mock.Interval = def.Mock.Interval
	}
	if c.Mock.Gain == 0 {
		c.Mock.Gain = def.Mock.Gain
	}
	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}
