package measurement

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ioyurev/vta-collection/pkg/heater"
	"github.com/ioyurev/vta-collection/pkg/thermo"
)

// Axis labels of the recorded series.
const (
	EMFLabel         = "EMF, mV"
	TemperatureLabel = "Temperature, ºC"
	OutputLabel      = "Output, V"
)

// Sample is a recorded tick with times relative to the run origin.
type Sample struct {
	Time        float64 // s since origin, EMF read
	EMF         float64 // mV
	Temperature float64 // °C, NaN when no chain is attached
	OutputTime  float64 // s since origin, output applied
	Output      float64
}

// Converter turns a loop event stream into a stream of recorded samples.
type Converter func(in <-chan heater.Event) <-chan Sample

// Recorder collects loop data points into EMF, temperature and output series
// while recording is enabled. The first recorded point sets the time origin.
type Recorder struct {
	log logrus.FieldLogger

	mu        sync.RWMutex
	chain     *thermo.Chain
	recording bool
	origin    time.Time
	started   bool

	emf         *Series
	temperature *Series
	output      *Series
}

// NewRecorder creates a stopped recorder. chain may be nil, in which case no
// temperature series is recorded.
func NewRecorder(chain *thermo.Chain, log logrus.FieldLogger) *Recorder {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Recorder{
		log:         log.WithField("component", "recorder"),
		chain:       chain,
		emf:         NewSeries("emf", EMFLabel),
		temperature: NewSeries("temp", TemperatureLabel),
		output:      NewSeries("output", OutputLabel),
	}
}

// SetChain replaces the temperature chain used for new points.
func (r *Recorder) SetChain(chain *thermo.Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain = chain
}

// Enable starts recording.
func (r *Recorder) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
}

// Disable stops recording. Recorded series are kept.
func (r *Recorder) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
}

// Recording reports whether points are being recorded.
func (r *Recorder) Recording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// Clear drops all recorded points and resets the time origin.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emf.Clear()
	r.temperature.Clear()
	r.output.Clear()
	r.started = false
	r.origin = time.Time{}
}

// Add records p if recording is enabled and reports whether it did.
func (r *Recorder) Add(p heater.DataPoint) (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return Sample{}, false
	}
	if !r.started {
		r.origin = p.T1
		r.started = true
	}

	s := Sample{
		Time:        p.T1.Sub(r.origin).Seconds(),
		EMF:         p.EMF,
		Temperature: math.NaN(),
		OutputTime:  p.T2.Sub(r.origin).Seconds(),
		Output:      p.Output,
	}
	if r.chain != nil {
		s.Temperature = r.chain.Temperature(p.EMF)
		r.temperature.Append(s.Time, s.Temperature)
	}
	r.emf.Append(s.Time, s.EMF)
	r.output.Append(s.OutputTime, s.Output)
	return s, true
}

// Len returns the number of recorded points.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.emf.Len()
}

// EMF returns a copy of the EMF series.
func (r *Recorder) EMF() *Series { return r.snapshot(r.emf) }

// Temperature returns a copy of the temperature series.
func (r *Recorder) Temperature() *Series { return r.snapshot(r.temperature) }

// Output returns a copy of the output series.
func (r *Recorder) Output() *Series { return r.snapshot(r.output) }

func (r *Recorder) snapshot(s *Series) *Series {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return s.Clone()
}

// Converter returns a converter that records every data point it receives
// and forwards the recorded samples. Tick errors are skipped. Samples that do
// not fit in the output buffer are dropped; they stay recorded.
func (r *Recorder) Converter(bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = heater.DefaultBufferSize
	}

	return func(in <-chan heater.Event) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for ev := range in {
				if ev.Err != nil {
					r.log.Debugf("skip failed tick: %v", ev.Err)
					continue
				}
				s, ok := r.Add(*ev.Point)
				if !ok {
					continue
				}

				select {
				case out <- s:
				default:
					r.log.Debug("recorder output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}
