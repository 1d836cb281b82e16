package adam

import (
	"fmt"

	"github.com/ioyurev/vta-collection/pkg/protocol"
)

// Answer offsets of the numeric field in 4011 replies.
const (
	dataOffset     = 1 // ">+01.2345"
	syncDataOffset = 4 // ">AAS+01.2345"
	cjcOffset      = 1 // ">+0025.4"
)

// InputModule is the ADAM-4011 thermocouple input.
type InputModule struct {
	module
	config protocol.InputConfig
}

// NewInputModule attaches a 4011 at address to the converter.
func NewInputModule(conv *Converter, address int) *InputModule {
	return &InputModule{module: newModule(conv, protocol.Family4011, address)}
}

// Config returns the configuration cached by the last Setup.
func (m *InputModule) Config() protocol.InputConfig { return m.config }

// Setup reads and caches the configuration and name.
func (m *InputModule) Setup() error {
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
	return nil
}

// ReadConfig issues the configuration query and decodes the answer.
func (m *InputModule) ReadConfig() (protocol.InputConfig, error) {
	answer, err := m.readConfig()
	if err != nil {
		return protocol.InputConfig{}, err
	}
	return protocol.ParseInputConfig(answer)
}

// WriteConfig sends the set command for cfg.
func (m *InputModule) WriteConfig(cfg protocol.InputConfig) error {
	cmd, err := cfg.Encode()
	if err != nil {
		return err
	}
	return m.writeConfig(cmd)
}

// ReadValue reads one EMF sample in millivolts.
func (m *InputModule) ReadValue() (float64, error) {
	answer, err := m.send(m.family.Data)
	if err != nil {
		return 0, err
	}
	return parseValue(answer, dataOffset)
}

// ReadSyncValue reads the value latched by the last synchronized sampling command.
func (m *InputModule) ReadSyncValue() (float64, error) {
	answer, err := m.query(protocol.FnSyncData)
	if err != nil {
		return 0, err
	}
	return parseValue(answer, syncDataOffset)
}

// ReadCJCTemperature reads the cold-junction sensor temperature in °C.
func (m *InputModule) ReadCJCTemperature() (float64, error) {
	answer, err := m.query(protocol.FnCJCStatus)
	if err != nil {
		return 0, err
	}
	return parseValue(answer, cjcOffset)
}
