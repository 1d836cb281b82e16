package adam

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ioyurev/vta-collection/pkg/protocol"
)

// ConverterEOL is the end-of-line byte used on the converter bus.
const ConverterEOL = '\r'

// Converter is the ADAM-4520 bus converter. It owns the transport and
// serializes request/answer exchanges so that only one command is in flight.
type Converter struct {
	transport Transport
	eol       byte
	log       logrus.FieldLogger

	mu sync.Mutex
}

// NewConverter wraps transport. A nil logger discards output.
func NewConverter(transport Transport, log logrus.FieldLogger) *Converter {
	if log == nil {
		log = discard()
	}
	return &Converter{
		transport: transport,
		eol:       ConverterEOL,
		log:       log.WithField("component", "adam"+protocol.Family4520.Model),
	}
}

// Model returns the converter model name.
func (c *Converter) Model() string {
	return protocol.Family4520.Model
}

// Transport returns the wrapped transport.
func (c *Converter) Transport() Transport {
	return c.transport
}

// Send writes cmd followed by the end-of-line byte and returns the trimmed answer.
func (c *Converter) Send(cmd []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.transport.IsOpen() {
		return "", ErrNotOpen
	}

	c.log.Debugf("send command: %q", cmd)
	if err := c.transport.Write(protocol.Terminate(cmd, c.eol)); err != nil {
		return "", fmt.Errorf("write %q: %w", cmd, err)
	}

	raw, err := c.transport.ReadUntil(c.eol)
	if err != nil {
		return "", fmt.Errorf("read answer to %q: %w", cmd, err)
	}
	answer := strings.TrimSpace(string(raw))
	c.log.Debugf("answer: %q", answer)

	if strings.HasPrefix(answer, string(protocol.PrefixReject)) {
		return answer, &CommandError{Command: string(cmd), Answer: answer}
	}
	return answer, nil
}

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
