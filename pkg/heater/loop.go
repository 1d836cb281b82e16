package heater

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 100

// FailureBackoff is the pause after a failed tick before the next one.
const FailureBackoff = 100 * time.Millisecond

// DataPoint is one loop tick: the EMF read at T1 and the output in effect
// at T2, after the heater was advanced.
type DataPoint struct {
	T1     time.Time
	EMF    float64 // mV
	T2     time.Time
	Output float64
}

// Event is published once per tick. Exactly one of Point and Err is set.
type Event struct {
	Point *DataPoint
	Err   error
}

// Loop samples the input, advances the heater and publishes a DataPoint on
// every tick of a dedicated goroutine.
type Loop struct {
	driver  Driver
	heater  *Heater
	log     logrus.FieldLogger
	metrics *Metrics
	now     func() time.Time
	backoff time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	subMu  sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

// NewLoop creates a stopped loop over driver. A nil logger discards output
// and nil metrics are created unregistered.
func NewLoop(driver Driver, heater *Heater, log logrus.FieldLogger, metrics *Metrics) *Loop {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Loop{
		driver:  driver,
		heater:  heater,
		log:     log.WithField("component", "heater"),
		metrics: metrics,
		now:     time.Now,
		backoff: FailureBackoff,
		subs:    make(map[int]chan Event),
	}
}

// Heater returns the controlled heater.
func (l *Loop) Heater() *Heater { return l.heater }

// Running reports whether the loop goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done != nil
}

// Start launches the loop. Starting a running loop is a no-op. Start is
// refused with ErrNotReady when the driver is not ready.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done != nil {
		return nil
	}
	if err := l.driver.Ready(); err != nil {
		l.log.Errorf("heater loop can't be started: %v", err)
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)

	l.log.Debug("heater loop started")
	return nil
}

// Stop cancels the loop and blocks until its goroutine has exited. The heater
// is then disabled and reset and the output driven to zero. No event is
// published after Stop returns.
func (l *Loop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done == nil {
		return nil
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil

	l.heater.Disable()
	l.heater.Reset()
	l.metrics.Setpoint.Set(0)

	l.log.Debug("heater loop stopped")
	if err := l.driver.WriteOutput(0); err != nil {
		return fmt.Errorf("zero output on stop: %w", err)
	}
	return nil
}

// Subscribe registers a subscriber with a buffer of size events. Events that
// do not fit are dropped. The returned function unsubscribes and closes the
// channel.
func (l *Loop) Subscribe(size int) (<-chan Event, func()) {
	if size <= 0 {
		size = DefaultBufferSize
	}
	ch := make(chan Event, size)

	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subMu.Lock()
			delete(l.subs, id)
			l.subMu.Unlock()
			close(ch)
		})
	}
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if l.tick() {
			continue
		}
		if !l.pause(ctx) {
			return
		}
	}
}

// pause waits out the failure backoff. It reports false when ctx is done.
func (l *Loop) pause(ctx context.Context) bool {
	t := time.NewTimer(l.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// tick runs one read-advance-write cycle and reports whether it succeeded.
func (l *Loop) tick() bool {
	start := l.now()
	defer func() {
		l.metrics.TickDuration.Observe(l.now().Sub(start).Seconds())
	}()

	emf, err := l.driver.ReadEMF()
	if err != nil {
		l.fail(OpRead, err)
		return false
	}
	t1 := l.now()
	l.metrics.EMF.Set(emf)

	output, write := l.heater.Advance(t1)
	if write {
		if err := l.driver.WriteOutput(output); err != nil {
			l.heater.markDirty()
			l.fail(OpWrite, err)
			return false
		}
	}
	t2 := l.now()
	l.metrics.Setpoint.Set(output)
	l.metrics.Ticks.Inc()

	l.publish(Event{Point: &DataPoint{T1: t1, EMF: emf, T2: t2, Output: output}})
	return true
}

func (l *Loop) fail(op string, err error) {
	lerr := &LoopError{Op: op, Err: err}
	l.metrics.Errors.WithLabelValues(op).Inc()
	l.log.Warn(lerr)
	l.publish(Event{Err: lerr})
}

func (l *Loop) publish(ev Event) {
	l.subMu.RLock()
	defer l.subMu.RUnlock()

	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
			l.metrics.Dropped.Inc()
			l.log.Debug("subscriber full, event dropped")
		}
	}
}
