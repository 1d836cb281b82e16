package adam

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ioyurev/vta-collection/pkg/config"
	"github.com/ioyurev/vta-collection/pkg/protocol"
)

// Simulator is a Transport that answers the ADAM command set for one 4011 and
// one 4021 attached behind a 4520. The thermocouple EMF follows the output
// with a first-order lag.
type Simulator struct {
	cfg   *config.MockConfig
	now   func() time.Time
	sleep func(time.Duration)

	mu      sync.Mutex
	open    bool
	port    string
	pending []byte

	input  protocol.InputConfig
	output protocol.OutputConfig

	setpoint float64
	emf      float64
	start    time.Time
	last     time.Time
}

// NewSimulator creates a closed simulator with modules at the given addresses.
func NewSimulator(cfg *config.MockConfig, inputAddr, outputAddr int) *Simulator {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	return &Simulator{
		cfg:   cfg,
		now:   time.Now,
		sleep: time.Sleep,
		input: protocol.InputConfig{
			Address:    inputAddr,
			NewAddress: inputAddr,
			Range:      protocol.InputRange15mV,
			Baudrate:   protocol.Baud9600,
			Format:     protocol.InputEngineering,
		},
		output: protocol.OutputConfig{
			Address:    outputAddr,
			NewAddress: outputAddr,
			Range:      protocol.OutputRange0to10V,
			Baudrate:   protocol.Baud9600,
			SlewRate:   protocol.SlewImmediate,
			Format:     protocol.OutputEngineering,
		},
	}
}

// Open opens port. When the configuration lists ports, only those open.
func (s *Simulator) Open(port string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return fmt.Errorf("already open on %s", s.port)
	}
	if len(s.cfg.Ports) > 0 && !contains(s.cfg.Ports, port) {
		return fmt.Errorf("failed to open serial port %s: no such port", port)
	}
	s.open = true
	s.port = port
	s.pending = nil
	if s.start.IsZero() {
		s.start = s.now()
		s.last = s.start
	}
	return nil
}

// Close closes the simulated port.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	s.port = ""
	s.pending = nil
	return nil
}

// IsOpen reports whether the simulated port is open.
func (s *Simulator) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Write accepts one terminated command and prepares its answer.
func (s *Simulator) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrNotOpen
	}
	cmd := strings.TrimRight(string(p), "\r\n")
	s.pending = nil
	if answer, ok := s.answer(cmd); ok {
		s.pending = []byte(answer + string(rune(ConverterEOL)))
	}
	return nil
}

// charTime is the line time of one character at 9600 baud, 8N2.
const charTime = 11 * time.Second / 9600

// ReadUntil returns the prepared answer after its line time. Commands no
// module responds to time out.
func (s *Simulator) ReadUntil(delim byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, ErrNotOpen
	}
	if len(s.pending) == 0 {
		return nil, ErrReadTimeout
	}
	i := strings.IndexByte(string(s.pending), delim)
	if i < 0 {
		out := s.pending
		s.pending = nil
		return out, ErrReadTimeout
	}
	out := s.pending[:i+1]
	s.pending = s.pending[i+1:]
	s.sleep(time.Duration(len(out)) * charTime)
	return out, nil
}

// Setpoint returns the last value written to the output module.
func (s *Simulator) Setpoint() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setpoint
}

// EMF returns the current simulated thermocouple EMF in mV.
func (s *Simulator) EMF() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advance()
}

func (s *Simulator) answer(cmd string) (string, bool) {
	if len(cmd) < 3 {
		return "", false
	}
	token := strings.ToUpper(cmd[1:3])
	body := strings.ToUpper(cmd[3:])

	inAddr, _ := protocol.FormatAddress(s.input.Address, protocol.Family4011.Base)
	outAddr, _ := protocol.FormatAddress(s.output.Address, protocol.Family4021.Base)

	switch token {
	case inAddr:
		return s.answerInput(cmd[0], token, body, cmd), true
	case outAddr:
		return s.answerOutput(cmd[0], token, body, cmd), true
	}
	return "", false
}

func (s *Simulator) answerInput(prefix byte, addr, body, cmd string) string {
	switch {
	case prefix == protocol.PrefixData && body == "":
		return fmt.Sprintf(">%+08.4f", s.advance())
	case prefix == protocol.PrefixQuery:
		switch body {
		case protocol.FnName:
			return "!" + addr + protocol.Family4011.Model
		case protocol.FnFirmware:
			return "!" + addr + "A1.10"
		case protocol.FnConfig:
			c := s.input
			return fmt.Sprintf("!%s%s%s%02X", addr, string(c.Range), string(c.Baudrate), c.Flags())
		case protocol.FnCJCStatus:
			return fmt.Sprintf(">%+07.1f", s.cfg.CJCTemperature)
		case protocol.FnSyncData:
			return fmt.Sprintf(">%s1%+08.4f", addr, s.advance())
		}
	case prefix == protocol.PrefixSet:
		cfg, err := protocol.ParseInputConfig(cmd)
		if err == nil {
			s.input = cfg
			s.input.Address = cfg.NewAddress
			n, _ := protocol.FormatAddress(cfg.NewAddress, protocol.Family4011.Base)
			return "!" + n
		}
	}
	return "?" + addr
}

func (s *Simulator) answerOutput(prefix byte, addr, body, cmd string) string {
	switch {
	case prefix == protocol.PrefixData && body != "":
		var v float64
		if _, err := fmt.Sscanf(body, "%f", &v); err != nil || v < 0 {
			return "?" + addr
		}
		s.advance()
		s.setpoint = v
		return ">"
	case prefix == protocol.PrefixQuery:
		switch body {
		case protocol.FnName:
			return "!" + addr + protocol.Family4021.Model
		case protocol.FnFirmware:
			return "!" + addr + "A2.00"
		case protocol.FnConfig:
			c := s.output
			return fmt.Sprintf("!%s%s%s%02X", addr, string(c.Range), string(c.Baudrate), c.Flags())
		case protocol.FnCurrentOutput:
			return fmt.Sprintf("!%s%06.3f", addr, s.setpoint)
		}
	case prefix == protocol.PrefixSet:
		cfg, err := protocol.ParseOutputConfig(cmd)
		if err == nil {
			s.output = cfg
			s.output.Address = cfg.NewAddress
			n, _ := protocol.FormatAddress(cfg.NewAddress, protocol.Family4021.Base)
			return "!" + n
		}
	}
	return "?" + addr
}

// advance moves the thermal model to now and returns the noisy EMF.
func (s *Simulator) advance() float64 {
	now := s.now()
	dt := now.Sub(s.last).Seconds()
	s.last = now

	if dt > 0 && s.cfg.TimeConstant > 0 {
		target := s.cfg.Gain * s.setpoint
		alpha := 1 - math.Exp(-dt/s.cfg.TimeConstant.Seconds())
		s.emf += alpha * (target - s.emf)
	}

	elapsed := now.Sub(s.start).Seconds()
	noise := (math.Sin(elapsed*7.1) + math.Cos(elapsed*13.3)) * s.cfg.NoiseLevel * 0.5
	return s.emf + noise
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
