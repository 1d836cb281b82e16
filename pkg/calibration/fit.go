package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Fit least-squares fits the correction delta (theoretical minus
// experimental) against the experimental temperature with a polynomial of
// the kind's degree. Coefficients are returned highest power first.
func Fit(kind Kind, standards []Standard) ([]float64, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Field: "calibration_type", Reason: fmt.Sprintf("%q", kind), Err: ErrUnknownKind}
	}
	if len(standards) < 2 {
		return nil, &ValidationError{Field: "standards", Err: ErrInsufficientStandards}
	}

	p := kind.Params()
	n := len(standards)
	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, s := range standards {
		if math.IsNaN(s.Experimental) || math.IsInf(s.Experimental, 0) || math.IsNaN(s.Delta()) || math.IsInf(s.Delta(), 0) {
			return nil, invalid("standards", "%q has a non-finite temperature", s.Name)
		}
		for j := 0; j < p; j++ {
			a.Set(i, j, math.Pow(s.Experimental, float64(p-1-j)))
		}
		b.SetVec(i, s.Delta())
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, invalid("standards", "no %s fit: %v", kind, err)
	}

	coeffs := make([]float64, p)
	for j := range coeffs {
		coeffs[j] = x.AtVec(j)
		if math.IsNaN(coeffs[j]) || math.IsInf(coeffs[j], 0) {
			return nil, invalid("standards", "no %s fit: coefficient %d is not finite", kind, j)
		}
	}
	return coeffs, nil
}

// Build fits standards and creates the named calibration. A fit that yields
// only zero coefficients is rejected.
func Build(name, description string, kind Kind, standards []Standard) (*Calibration, error) {
	coeffs, err := Fit(kind, standards)
	if err != nil {
		return nil, err
	}
	allZero := true
	for _, c := range coeffs {
		if c != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return nil, invalid("coefficients", "all fitted coefficients are zero")
	}
	return New(kind, coeffs, name, description, standards)
}
