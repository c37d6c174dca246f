//go:build !no_cgo

package solver

import (
	"github.com/go-nlopt/nlopt"
)

// NloptMinimizer is an alternate, derivative-free minimizer backed by
// go-nlopt, offered alongside the Levenberg-Marquardt loop above for
// small scalar-objective problems (e.g. calib's translation refinement)
// that don't need the full sparse-Jacobian machinery.
type NloptMinimizer struct {
	dim int
}

// NewMinimizer creates an nlopt-backed minimizer over a dim-dimensional
// search space.
func NewMinimizer(dim int) (*NloptMinimizer, error) {
	return &NloptMinimizer{dim: dim}, nil
}

// Minimize runs NLopt's Nelder-Mead simplex over objective, starting from
// x0, matching the jump-free local search the original used as a fallback
// when an analytic linear solve is unavailable.
func (m *NloptMinimizer) Minimize(objective func(x []float64) float64, x0 []float64) ([]float64, float64, error) {
	opt, err := nlopt.NewNLopt(nlopt.LN_NELDERMEAD, uint(m.dim))
	if err != nil {
		return nil, 0, err
	}
	defer opt.Destroy()

	minFunc := func(x, gradient []float64) float64 {
		return objective(x)
	}
	if err := opt.SetMinObjective(minFunc); err != nil {
		return nil, 0, err
	}
	if err := opt.SetXtolRel(1e-8); err != nil {
		return nil, 0, err
	}
	if err := opt.SetMaxEval(2000); err != nil {
		return nil, 0, err
	}

	solution, value, err := opt.Optimize(x0)
	if err != nil {
		return nil, 0, err
	}
	return solution, value, nil
}
