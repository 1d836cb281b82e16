package adam

import (
	"fmt"
	"strings"

	"github.com/ioyurev/vta-collection/pkg/protocol"
)

const (
	// OutputBias is added to every setpoint before it is sent.
	OutputBias = 0.001

	readbackOffset = 3 // "!AA05.000"
)

// OutputModule is the ADAM-4021 analog output driving the heater supply.
type OutputModule struct {
	module
	config protocol.OutputConfig
}

// NewOutputModule attaches a 4021 at address to the converter.
func NewOutputModule(conv *Converter, address int) *OutputModule {
	return &OutputModule{module: newModule(conv, protocol.Family4021, address)}
}

// Config returns the configuration cached by the last Setup.
func (m *OutputModule) Config() protocol.OutputConfig { return m.config }

// Setup reads and caches the configuration and name, then drives the output to zero.
func (m *OutputModule) Setup() error {
	cfg, err := m.ReadConfig()
	if err != nil {
		return err
	}
	name, err := m.ReadName()
	if err != nil {
		return fmt.Errorf("read name: %w", err)
	}
	m.config = cfg
	m.name = name
	m.log.Infof("configured: %s", cfg)
	return m.WriteOutput(0)
}

// ReadConfig issues the configuration query and decodes the answer.
func (m *OutputModule) ReadConfig() (protocol.OutputConfig, error) {
	answer, err := m.readConfig()
	if err != nil {
		return protocol.OutputConfig{}, err
	}
	return protocol.ParseOutputConfig(answer)
}

// WriteConfig sends the set command for cfg.
func (m *OutputModule) WriteConfig(cfg protocol.OutputConfig) error {
	cmd, err := cfg.Encode()
	if err != nil {
		return err
	}
	return m.writeConfig(cmd)
}

// WriteOutput sets the analog output to value plus OutputBias.
func (m *OutputModule) WriteOutput(value float64) error {
	answer, err := m.send(func(addr int) ([]byte, error) {
		return m.family.Output(addr, value+OutputBias)
	})
	if err != nil {
		return fmt.Errorf("set output %.3f: %w", value, err)
	}
	if !strings.HasPrefix(answer, string(protocol.PrefixValue)) {
		return fmt.Errorf("set output %.3f: unexpected answer %q", value, answer)
	}
	return nil
}

// ReadOutput reads back the current output value.
func (m *OutputModule) ReadOutput() (float64, error) {
	answer, err := m.query(protocol.FnCurrentOutput)
	if err != nil {
		return 0, err
	}
	return parseValue(answer, readbackOffset)
}
