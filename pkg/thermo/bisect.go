package thermo

import (
	"fmt"
	"math"
)

// ConvergenceError is returned when bisection does not reach the tolerance
// within the iteration cap.
type ConvergenceError struct {
	Target     float64
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("bisection did not converge in %d iterations for target %g", e.Iterations, e.Target)
}

// Bisect finds x in [low, high] with |f(x) - target| < tol, assuming f is
// increasing on the interval. It returns a midpoint as soon as one is within
// tolerance.
func Bisect(f func(float64) float64, target, low, high, tol float64, maxIter int) (float64, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return 0, &ConvergenceError{Target: target, Iterations: 0}
	}
	for i := 0; i < maxIter; i++ {
		mid := (low + high) / 2
		v := f(mid)
		if math.Abs(v-target) < tol {
			return mid, nil
		}
		if v < target {
			low = mid
		} else {
			high = mid
		}
	}
	return 0, &ConvergenceError{Target: target, Iterations: maxIter}
}
