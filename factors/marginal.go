package factors

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mlo-robotics/mlo-estimator/solver"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// Marginal is the linearized prior produced by the marginalizer (C8):
// r(x) = J̃(x ⊖ x0) + r̃, evaluated against the retained blocks' current
// tangent offset from the linearization point x0 (spec.md §4.7).
type Marginal struct {
	RetainedBlocks []*solver.Block
	Linearization  [][]float64
	Jacobian       *mat.Dense
	Residual       []float64
}

func (m *Marginal) Blocks() []*solver.Block { return m.RetainedBlocks }
func (m *Marginal) Dim() int                { return len(m.Residual) }

func (m *Marginal) Evaluate(values [][]float64) ([]float64, error) {
	delta := make([]float64, 0, len(m.RetainedBlocks)*6)
	for i, b := range m.RetainedBlocks {
		delta = append(delta, tangentDiff(b, m.Linearization[i], values[i])...)
	}

	rows, cols := m.Jacobian.Dims()
	_ = cols
	out := make([]float64, rows)
	for r := 0; r < rows; r++ {
		sum := m.Residual[r]
		for c, d := range delta {
			sum += m.Jacobian.At(r, c) * d
		}
		out[r] = sum
	}
	return out, nil
}

// tangentDiff returns x ⊖ x0 in the block's local tangent space.
func tangentDiff(b *solver.Block, x0, x []float64) []float64 {
	if _, ok := b.Param.(solver.PoseParam); ok {
		p0 := solver.PoseFromVector(x0)
		p1 := solver.PoseFromVector(x)
		twist := spatialmath.Log(p0.Inverse().Compose(p1))
		return []float64{twist[0], twist[1], twist[2], twist[3], twist[4], twist[5]}
	}
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] - x0[i]
	}
	return out
}
