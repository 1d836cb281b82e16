package adam

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ioyurev/vta-collection/pkg/protocol"
)

// Module is a device attached to the converter bus.
type Module interface {
	Model() string
	Address() int
	CheckIdentity() (bool, error)
	Setup() error
}

// Ensure the module types implement Module.
var (
	_ Module = (*InputModule)(nil)
	_ Module = (*OutputModule)(nil)
)

// module holds what every family shares: the converter, address and cached name.
type module struct {
	conv    *Converter
	family  protocol.Family
	address int
	log     logrus.FieldLogger

	name string
}

func newModule(conv *Converter, family protocol.Family, address int) module {
	return module{
		conv:    conv,
		family:  family,
		address: address,
		log: conv.log.WithFields(logrus.Fields{
			"module":  family.Model,
			"address": address,
		}),
	}
}

// Model returns the expected model token.
func (m *module) Model() string { return m.family.Model }

// Address returns the bus address.
func (m *module) Address() int { return m.address }

// Name returns the name cached by the last Setup.
func (m *module) Name() string { return m.name }

func (m *module) send(build func(int) ([]byte, error)) (string, error) {
	cmd, err := build(m.address)
	if err != nil {
		return "", err
	}
	return m.conv.Send(cmd)
}

func (m *module) query(fn string) (string, error) {
	return m.send(func(addr int) ([]byte, error) {
		return m.family.Query(protocol.PrefixQuery, addr, fn)
	})
}

// ReadName issues the "$AAM" name query.
func (m *module) ReadName() (string, error) {
	return m.send(m.family.Name)
}

// ReadFirmware issues the "$AAF" firmware version query.
func (m *module) ReadFirmware() (string, error) {
	return m.send(m.family.Firmware)
}

// CheckIdentity reports whether the module answers its name query with the
// expected model token.
func (m *module) CheckIdentity() (bool, error) {
	name, err := m.ReadName()
	if err != nil {
		return false, err
	}
	return strings.Contains(name, m.family.Model), nil
}

func (m *module) readConfig() (string, error) {
	answer, err := m.send(m.family.Config)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	return answer, nil
}

func (m *module) writeConfig(cmd []byte) error {
	answer, err := m.conv.Send(cmd)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if !strings.HasPrefix(answer, string(protocol.PrefixOK)) {
		return &CommandError{Command: string(cmd), Answer: answer}
	}
	return nil
}

// parseValue returns the numeric field starting at offset of an answer.
func parseValue(answer string, offset int) (float64, error) {
	answer = strings.TrimSpace(answer)
	if len(answer) <= offset {
		return 0, fmt.Errorf("answer %q too short", answer)
	}
	v, err := strconv.ParseFloat(answer[offset:], 64)
	if err != nil {
		return 0, fmt.Errorf("parse value from %q: %w", answer, err)
	}
	return v, nil
}
