// Package session wires the instrument, the heater loop, the temperature chain
// and the recorder of one application run.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ioyurev/vta-collection/pkg/adam"
	"github.com/ioyurev/vta-collection/pkg/calibration"
	"github.com/ioyurev/vta-collection/pkg/config"
	"github.com/ioyurev/vta-collection/pkg/heater"
	"github.com/ioyurev/vta-collection/pkg/measurement"
	"github.com/ioyurev/vta-collection/pkg/thermo"
)

var (
	// ErrNotConnected is returned by operations that need a connected instrument.
	ErrNotConnected = errors.New("session not connected")
	// ErrNoRun is returned when no run has been started.
	ErrNoRun = errors.New("no run started")
)

// monotonicSteps is the probe resolution of the thermocouple bracket.
const monotonicSteps = 1000

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) { s.log = log }
}

// WithRegisterer registers the loop metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Session) { s.reg = reg }
}

// WithTransport replaces the serial transport, e.g. with an adam.Simulator.
func WithTransport(t adam.Transport) Option {
	return func(s *Session) { s.transport = t }
}

// Session owns every component of one instrument connection. It replaces
// process-wide instances: everything is reached through it.
type Session struct {
	cfg       *config.Config
	log       logrus.FieldLogger
	reg       prometheus.Registerer
	transport adam.Transport

	tc       *thermo.Thermocouple
	registry *calibration.Registry
	recorder *measurement.Recorder
	metrics  *heater.Metrics

	mu          sync.Mutex
	hw          *adam.Hardware
	source      thermo.TemperatureSource
	loop        *heater.Loop
	chain       *thermo.Chain
	cal         *calibration.Calibration
	meta        *measurement.Metadata
	unsubscribe func()
	samples     <-chan measurement.Sample
}

// New validates cfg and builds the parts of a session that need no hardware:
// the thermocouple, the calibration registry and the recorder.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	s.log = s.log.WithField("component", "session")

	tc, err := thermo.FromConfig(cfg.Thermocouple)
	if err != nil {
		return nil, fmt.Errorf("thermocouple: %w", err)
	}
	if err := tc.CheckMonotonic(monotonicSteps); err != nil {
		s.log.Warnf("thermocouple inverse may be wrong: %v", err)
	}
	s.tc = tc

	if s.registry, err = calibration.OpenRegistry(cfg.Calibration.Directory, s.log); err != nil {
		return nil, err
	}
	if cfg.Calibration.Active != "" {
		if err := s.registry.SetActive(cfg.Calibration.Active); err != nil {
			s.log.Warnf("active calibration: %v", err)
		}
	}

	s.recorder = measurement.NewRecorder(nil, s.log)
	s.metrics = heater.NewMetrics(s.reg)
	return s, nil
}

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Thermocouple returns the configured thermocouple.
func (s *Session) Thermocouple() *thermo.Thermocouple { return s.tc }

// Registry returns the calibration registry.
func (s *Session) Registry() *calibration.Registry { return s.registry }

// Recorder returns the run recorder.
func (s *Session) Recorder() *measurement.Recorder { return s.recorder }

// Hardware returns the discovered instrument, or nil in no-hardware mode or
// before Connect.
func (s *Session) Hardware() *adam.Hardware {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hw
}

// Loop returns the heater loop, or nil before Connect.
func (s *Session) Loop() *heater.Loop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// Chain returns the temperature chain of the current run, or nil.
func (s *Session) Chain() *thermo.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain
}

// Connect finds the instrument and prepares the heater loop. In no-hardware
// mode the synthetic driver and the configured cold-junction temperature are
// used instead. Connecting a connected session is a no-op.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loop != nil {
		return nil
	}

	var driver heater.Driver
	if s.cfg.Mock.Enabled {
		s.log.Info("no-hardware mode")
		driver = heater.NewSyntheticDriver(s.cfg.Mock.Interval)
		s.source = thermo.ConstantTemperature(s.cfg.ColdJunction.Temperature)
	} else {
		hw, err := s.connectHardware()
		if err != nil {
			return err
		}
		s.hw = hw
		driver = heater.NewHardwareDriver(hw)
		s.source = hw.Input
	}

	h := heater.New(heater.MillivoltsPerSecond(s.cfg.Heater.DefaultSpeed))
	s.loop = heater.NewLoop(driver, h, s.log, s.metrics)
	return nil
}

func (s *Session) connectHardware() (*adam.Hardware, error) {
	transport := s.transport
	if transport == nil {
		transport = adam.NewSerial(s.cfg.Serial.BaudRate, s.cfg.Serial.ReadTimeout)
	}
	hw := adam.NewHardware(transport, s.cfg.Modules.InputAddress, s.cfg.Modules.OutputAddress, s.log)

	if _, err := hw.Find(s.candidates()); err != nil {
		return nil, err
	}
	if err := hw.Setup(); err != nil {
		if cerr := hw.Close(); cerr != nil {
			s.log.Warnf("close after failed setup: %v", cerr)
		}
		return nil, err
	}
	return hw, nil
}

// candidates returns the ports to probe: the configured port, then the
// configured candidates in order, or the enumerated ports when none are set.
func (s *Session) candidates() []string {
	if len(s.cfg.Serial.Candidates) == 0 {
		available, err := adam.Ports()
		if err != nil {
			s.log.Warnf("enumerate ports: %v", err)
		}
		return adam.CandidatePorts(s.cfg.Serial.Port, available)
	}

	ports := adam.CandidatePorts(s.cfg.Serial.Port, nil)
	for _, p := range s.cfg.Serial.Candidates {
		if p != "" && !contains(ports, p) {
			ports = append(ports, p)
		}
	}
	return ports
}

// NewRun clears the recorder and starts a new run with meta. The cold junction
// is read again and the active calibration, when enabled, is attached.
func (s *Session) NewRun(meta measurement.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loop == nil {
		return ErrNotConnected
	}

	cjc, err := thermo.NewCompensator(s.tc, s.source)
	if err != nil {
		return fmt.Errorf("cold junction: %w", err)
	}

	var cal *calibration.Calibration
	var corrector thermo.Corrector
	if s.cfg.Calibration.Enabled {
		if active := s.registry.Active(); !active.IsZero() {
			cal = active
			corrector = active
		}
	}

	s.chain = thermo.NewChain(s.tc, cjc, corrector)
	s.cal = cal
	s.meta = &meta
	s.recorder.Clear()
	s.recorder.SetChain(s.chain)

	data := cjc.Data()
	s.log.WithField("run", meta.ID).Infof("new run %q: cold junction %.2f °C, %.6f mV", meta.Sample, data.Temperature, data.EmfCold)
	return nil
}

// StartLoop starts the heater loop and feeds its events to the recorder.
func (s *Session) StartLoop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loop == nil {
		return ErrNotConnected
	}
	if s.loop.Running() {
		return nil
	}
	if err := s.loop.Start(); err != nil {
		return err
	}
	events, unsubscribe := s.loop.Subscribe(s.cfg.Heater.BufferSize)
	s.unsubscribe = unsubscribe
	s.samples = s.recorder.Converter(s.cfg.Heater.BufferSize)(events)
	return nil
}

// StopLoop stops the heater loop. The output is driven to zero.
func (s *Session) StopLoop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLoop()
}

func (s *Session) stopLoop() error {
	if s.loop == nil {
		return nil
	}
	s.recorder.Disable()
	err := s.loop.Stop()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.samples = nil
	return err
}

// Samples returns the recorded samples of the running loop, or nil when the
// loop is not running. Samples not read in time are dropped.
func (s *Session) Samples() <-chan measurement.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

// StartHeating clears the recorded series, starts recording and enables the
// ramp.
func (s *Session) StartHeating() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loop == nil {
		return ErrNotConnected
	}
	if s.meta == nil {
		return ErrNoRun
	}
	s.recorder.Clear()
	s.recorder.Enable()
	s.loop.Heater().Enable()
	s.log.Info("heating started")
	return nil
}

// StopHeating stops recording, disables the ramp and resets the output.
func (s *Session) StopHeating() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loop == nil {
		return ErrNotConnected
	}
	s.recorder.Disable()
	h := s.loop.Heater()
	h.Disable()
	h.Reset()
	s.log.Info("heating stopped")
	return nil
}

// SetSpeed sets the ramp rate in mV/s.
func (s *Session) SetSpeed(mvps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loop == nil {
		return ErrNotConnected
	}
	return s.loop.Heater().SetSpeed(heater.MillivoltsPerSecond(mvps))
}

// Archive collects the current run for saving.
func (s *Session) Archive() (*measurement.Archive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta == nil || s.chain == nil {
		return nil, ErrNoRun
	}
	cjc := s.chain.Compensator().Data()
	return &measurement.Archive{
		Metadata:     *s.meta,
		EMF:          s.recorder.EMF(),
		Calibration:  s.cal,
		Thermocouple: measurement.ThermocoupleData{Coefficients: s.tc.Coefficients()},
		CJC:          &cjc,
	}, nil
}

// Close stops the loop and releases the instrument.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.stopLoop()
	if s.hw != nil {
		if cerr := s.hw.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.hw = nil
	s.loop = nil
	return err
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
