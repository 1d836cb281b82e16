package calibration

import (
	"fmt"
	"math"
)

// Kind is the shape of the correction curve.
type Kind string

const (
	// Linear corrects with t + a*t + b.
	Linear Kind = "linear"
	// Quadratic corrects with t + a*t² + b*t + c.
	Quadratic Kind = "quadratic"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Linear || k == Quadratic
}

// Params returns the number of coefficients of the kind.
func (k Kind) Params() int {
	if k == Quadratic {
		return 3
	}
	return 2
}

// Degree returns the polynomial degree of the fitted delta.
func (k Kind) Degree() int {
	return k.Params() - 1
}

// Standard is a calibration anchor: a known temperature and the reading the
// instrument gave for it.
type Standard struct {
	Name         string  `json:"name"`
	Theoretical  float64 `json:"t_theor"`
	Experimental float64 `json:"t_exp"`
}

// Delta returns the correction the standard asks for.
func (s Standard) Delta() float64 {
	return s.Theoretical - s.Experimental
}

// Calibration corrects measured temperatures. The zero value is not valid;
// use New or Zero.
type Calibration struct {
	kind         Kind
	coefficients []float64
	name         string
	description  string
	standards    []Standard
}

// New validates and creates a calibration. Short coefficient lists are padded
// with zeros.
func New(kind Kind, coefficients []float64, name, description string, standards []Standard) (*Calibration, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Field: "calibration_type", Reason: fmt.Sprintf("%q", kind), Err: ErrUnknownKind}
	}
	for i, c := range coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, invalid("coefficients", "c%d is not finite: %v", i, c)
		}
	}
	for _, s := range standards {
		if math.IsNaN(s.Theoretical) || math.IsInf(s.Theoretical, 0) ||
			math.IsNaN(s.Experimental) || math.IsInf(s.Experimental, 0) {
			return nil, invalid("standards", "%q has a non-finite temperature", s.Name)
		}
	}

	coeffs := make([]float64, kind.Params())
	copy(coeffs, coefficients)
	return &Calibration{
		kind:         kind,
		coefficients: coeffs,
		name:         name,
		description:  description,
		standards:    append([]Standard(nil), standards...),
	}, nil
}

// Zero returns the calibration that applies no correction.
func Zero() *Calibration {
	return &Calibration{
		kind:         Linear,
		coefficients: []float64{0, 0},
	}
}

// Kind returns the calibration kind.
func (c *Calibration) Kind() Kind { return c.kind }

// Name returns the calibration name.
func (c *Calibration) Name() string { return c.name }

// Description returns the free-text description.
func (c *Calibration) Description() string { return c.description }

// Coefficients returns a copy of the coefficients, highest power first.
func (c *Calibration) Coefficients() []float64 {
	return append([]float64(nil), c.coefficients...)
}

// Standards returns a copy of the standards.
func (c *Calibration) Standards() []Standard {
	return append([]Standard(nil), c.standards...)
}

// IsZero reports whether the calibration applies no correction.
func (c *Calibration) IsZero() bool {
	if len(c.standards) > 0 {
		return false
	}
	for _, v := range c.coefficients {
		if v != 0 {
			return false
		}
	}
	return true
}

// Evaluate returns the corrected temperature for measured.
func (c *Calibration) Evaluate(measured float64) float64 {
	if c.IsZero() {
		return measured
	}
	return measured + c.delta(measured)
}

// delta evaluates the fitted correction polynomial, highest power first.
func (c *Calibration) delta(t float64) float64 {
	var v float64
	for _, k := range c.coefficients {
		v = v*t + k
	}
	return v
}

// Formula returns a human readable form of the correction.
func (c *Calibration) Formula() string {
	if c.IsZero() {
		return "T = T_exp (no correction)"
	}
	k := c.coefficients
	if c.kind == Quadratic {
		return fmt.Sprintf("T = T_exp + %.6g*T_exp² + %.6g*T_exp + %.6g", k[0], k[1], k[2])
	}
	return fmt.Sprintf("T = T_exp + %.6g*T_exp + %.6g", k[0], k[1])
}

func (c *Calibration) String() string {
	name := c.name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("%s [%s]: %s", name, c.kind, c.Formula())
}
