package calibration

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistics describes how well a calibration fits its standards.
type Statistics struct {
	Residuals   []float64 // actual minus fitted delta, per standard
	SSRes       float64
	SSTot       float64
	RSquared    float64
	SEC         float64 // standard error of calibration
	Expanded    float64 // expanded uncertainty, k = 2
	MaxAbsError float64
	NPoints     int
	NParams     int
}

// Statistics evaluates the fit of the calibration against its standards.
func (c *Calibration) Statistics() (Statistics, error) {
	return Evaluate(c.kind, c.coefficients, c.standards)
}

// Evaluate computes fit statistics of coefficients against standards.
func Evaluate(kind Kind, coefficients []float64, standards []Standard) (Statistics, error) {
	if !kind.Valid() {
		return Statistics{}, &ValidationError{Field: "calibration_type", Reason: string(kind), Err: ErrUnknownKind}
	}
	if len(standards) < 2 {
		return Statistics{}, &ValidationError{Field: "standards", Err: ErrInsufficientStandards}
	}

	fit := &Calibration{kind: kind, coefficients: make([]float64, kind.Params())}
	copy(fit.coefficients, coefficients)

	n := len(standards)
	actual := make([]float64, n)
	fitted := make([]float64, n)
	for i, s := range standards {
		actual[i] = s.Delta()
		fitted[i] = fit.delta(s.Experimental)
	}

	residuals := make([]float64, n)
	floats.SubTo(residuals, actual, fitted)

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, v := range actual {
		ssTot += (v - mean) * (v - mean)
	}
	ssRes := floats.Dot(residuals, residuals)

	st := Statistics{
		Residuals: residuals,
		SSRes:     ssRes,
		SSTot:     ssTot,
		RSquared:  1,
		NPoints:   n,
		NParams:   kind.Params(),
	}
	if ssTot != 0 {
		st.RSquared = 1 - ssRes/ssTot
	}
	if n > st.NParams {
		st.SEC = math.Sqrt(ssRes / float64(n-st.NParams))
	}
	st.Expanded = 2 * st.SEC
	for _, r := range residuals {
		st.MaxAbsError = math.Max(st.MaxAbsError, math.Abs(r))
	}
	return st, nil
}
