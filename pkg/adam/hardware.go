package adam

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the discovery state of the instrument.
type State int

const (
	StateNotFound State = iota
	StateProbing
	StateFound
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateFound:
		return "found"
	default:
		return "not found"
	}
}

// Hardware owns the converter and the modules attached to it.
type Hardware struct {
	conv   *Converter
	Input  *InputModule
	Output *OutputModule

	modules []Module
	log     logrus.FieldLogger

	mu    sync.Mutex
	state State
	port  string
}

// NewHardware builds the converter over transport with an input and an
// output module at the given addresses.
func NewHardware(transport Transport, inputAddr, outputAddr int, log logrus.FieldLogger) *Hardware {
	conv := NewConverter(transport, log)
	h := &Hardware{
		conv:   conv,
		Input:  NewInputModule(conv, inputAddr),
		Output: NewOutputModule(conv, outputAddr),
		log:    conv.log,
	}
	h.modules = []Module{h.Input, h.Output}
	return h
}

// Converter returns the bus converter.
func (h *Hardware) Converter() *Converter { return h.conv }

// State returns the current discovery state.
func (h *Hardware) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Found reports whether discovery succeeded.
func (h *Hardware) Found() bool {
	return h.State() == StateFound
}

// Port returns the port the modules were found on.
func (h *Hardware) Port() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.port
}

// Ready returns ErrNotFound unless discovery succeeded.
func (h *Hardware) Ready() error {
	if !h.Found() {
		return ErrNotFound
	}
	return nil
}

// Find probes ports in order and stops at the first one on which every module
// answers its identity query. A found instrument returns the cached port.
func (h *Hardware) Find(ports []string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateFound {
		return h.port, nil
	}

	transport := h.conv.Transport()
	for _, port := range ports {
		h.state = StateProbing
		log := h.log.WithField("port", port)

		if transport.IsOpen() {
			if err := transport.Close(); err != nil {
				log.Warnf("close before probe: %v", err)
			}
		}
		if err := transport.Open(port); err != nil {
			log.Debugf("open failed: %v", err)
			continue
		}

		if h.checkIdentity(log) {
			h.state = StateFound
			h.port = port
			log.Infof("%s: found %s", h.conv.Model(), h.moduleNames())
			return port, nil
		}

		if err := transport.Close(); err != nil {
			log.Warnf("close after failed probe: %v", err)
		}
	}

	h.state = StateNotFound
	err := &DeviceNotFoundError{
		Model:   h.conv.Model(),
		Modules: h.moduleNames(),
		Ports:   append([]string(nil), ports...),
	}
	h.log.Error(err)
	return "", err
}

func (h *Hardware) checkIdentity(log logrus.FieldLogger) bool {
	for _, m := range h.modules {
		ok, err := m.CheckIdentity()
		if err != nil {
			log.Debugf("%s@%d identity: %v", m.Model(), m.Address(), err)
			return false
		}
		if !ok {
			log.Debugf("%s@%d identity mismatch", m.Model(), m.Address())
			return false
		}
	}
	return true
}

// CheckIdentity re-runs the identity query on every module.
func (h *Hardware) CheckIdentity() bool {
	return h.checkIdentity(h.log)
}

// Setup reads and caches the configuration of every module.
func (h *Hardware) Setup() error {
	if err := h.Ready(); err != nil {
		return err
	}
	for _, m := range h.modules {
		if err := m.Setup(); err != nil {
			return fmt.Errorf("setup %s@%d: %w", m.Model(), m.Address(), err)
		}
	}
	h.log.Infof("%s is set for work", h.conv.Model())
	return nil
}

// Close closes the transport and forgets the discovered port.
func (h *Hardware) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = StateNotFound
	h.port = ""
	if !h.conv.Transport().IsOpen() {
		return nil
	}
	return h.conv.Transport().Close()
}

func (h *Hardware) moduleNames() []string {
	names := make([]string, 0, len(h.modules))
	for _, m := range h.modules {
		names = append(names, fmt.Sprintf("%s@%d", m.Model(), m.Address()))
	}
	return names
}
