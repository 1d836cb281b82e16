package thermo

import (
	"errors"
	"fmt"
	"math"

	"github.com/ioyurev/vta-collection/pkg/config"
)

// Search bounds the inverse computation. The forward polynomial is assumed
// increasing between Low and High.
type Search struct {
	Low           float64 // mV
	High          float64 // mV
	Tolerance     float64 // °C
	MaxIterations int
}

// DefaultSearch is the bracket of the type A-1 thermocouple.
var DefaultSearch = Search{Low: -1, High: 5, Tolerance: 1e-4, MaxIterations: 100}

// ErrNotMonotonic is returned by CheckMonotonic.
var ErrNotMonotonic = errors.New("thermocouple polynomial is not increasing on the search bracket")

// Thermocouple converts EMF to temperature with T(E) = c0 + c1*E + c2*E² + ...
type Thermocouple struct {
	coefficients []float64
	search       Search
}

// New creates a thermocouple from coefficients, constant term first.
func New(coefficients []float64, search Search) (*Thermocouple, error) {
	if len(coefficients) == 0 {
		return nil, errors.New("thermocouple needs at least one coefficient")
	}
	for i, c := range coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("thermocouple coefficient c%d is not finite: %v", i, c)
		}
	}
	if search.Low >= search.High {
		return nil, fmt.Errorf("empty search bracket [%g, %g]", search.Low, search.High)
	}
	if search.Tolerance <= 0 || search.MaxIterations <= 0 {
		return nil, fmt.Errorf("invalid search tolerance %g or iterations %d", search.Tolerance, search.MaxIterations)
	}
	return &Thermocouple{
		coefficients: append([]float64(nil), coefficients...),
		search:       search,
	}, nil
}

// FromConfig creates the configured thermocouple.
func FromConfig(cfg config.ThermocoupleConfig) (*Thermocouple, error) {
	return New(cfg.Coefficients, Search{
		Low:           cfg.BracketLow,
		High:          cfg.BracketHigh,
		Tolerance:     cfg.Tolerance,
		MaxIterations: cfg.MaxIterations,
	})
}

// Coefficients returns a copy of the coefficients, constant term first.
func (t *Thermocouple) Coefficients() []float64 {
	return append([]float64(nil), t.coefficients...)
}

// Search returns the inverse search bounds.
func (t *Thermocouple) Search() Search { return t.search }

// Temperature returns the temperature in °C for emf in mV.
func (t *Thermocouple) Temperature(emf float64) float64 {
	var v float64
	for i := len(t.coefficients) - 1; i >= 0; i-- {
		v = v*emf + t.coefficients[i]
	}
	return v
}

// EMF returns the EMF in mV that produces temperature, found by bisection
// over the search bracket.
func (t *Thermocouple) EMF(temperature float64) (float64, error) {
	s := t.search
	return Bisect(t.Temperature, temperature, s.Low, s.High, s.Tolerance, s.MaxIterations)
}

// CheckMonotonic samples the bracket at steps points and returns
// ErrNotMonotonic if the polynomial does not increase between two of them.
func (t *Thermocouple) CheckMonotonic(steps int) error {
	if steps < 2 {
		steps = 2
	}
	s := t.search
	h := (s.High - s.Low) / float64(steps-1)
	prev := t.Temperature(s.Low)
	for i := 1; i < steps; i++ {
		e := s.Low + float64(i)*h
		v := t.Temperature(e)
		if v <= prev {
			return fmt.Errorf("%w: T(%.4f mV) = %.4f °C after %.4f °C", ErrNotMonotonic, e, v, prev)
		}
		prev = v
	}
	return nil
}
