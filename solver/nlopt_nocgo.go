//go:build no_cgo

package solver

import "github.com/pkg/errors"

// NloptMinimizer mimics the type available in the cgo build.
type NloptMinimizer struct{}

// NewMinimizer is not supported on no_cgo builds.
func NewMinimizer(dim int) (*NloptMinimizer, error) {
	return nil, errors.New("nlopt is not supported on this build")
}

// Minimize refuses to run without cgo.
func (m *NloptMinimizer) Minimize(objective func(x []float64) float64, x0 []float64) ([]float64, float64, error) {
	return nil, 0, errors.New("cannot minimize without cgo")
}
