package calib

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mlo-robotics/mlo-estimator/solver"
)

// translationAccumulator stacks the hand-eye translation constraint
// (R_ref - I) t_ex == R_ex * t_other - t_ref across observation pairs and
// solves it as a linear least squares problem once the rotation half of
// the bootstrap has converged.
type translationAccumulator struct {
	rows []float64 // flattened, 3 columns per observation
	rhs  []float64
	n    int
}

func (t *translationAccumulator) add(refRotation mat.Matrix, exRotation mat.Matrix, refTrans, otherTrans r3.Vector) {
	var lhs mat.Dense
	lhs.Sub(refRotation, mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}))
	for r := 0; r < 3; r++ {
		t.rows = append(t.rows, lhs.At(r, 0), lhs.At(r, 1), lhs.At(r, 2))
	}

	rotatedOther := mat.NewVecDense(3, nil)
	rotatedOther.MulVec(exRotation, mat.NewVecDense(3, []float64{otherTrans.X, otherTrans.Y, otherTrans.Z}))

	t.rhs = append(t.rhs,
		rotatedOther.AtVec(0)-refTrans.X,
		rotatedOther.AtVec(1)-refTrans.Y,
		rotatedOther.AtVec(2)-refTrans.Z,
	)
	t.n++
}

// translationResult is the least-squares solve of the accumulated system,
// plus a convergence flag based on the conditioning of its normal matrix.
type translationResult struct {
	t             r3.Vector
	converged     bool
	smallestEigen float64
}

func (t *translationAccumulator) solve(minEigen float64) translationResult {
	if t.n < 3 {
		return translationResult{}
	}
	a := mat.NewDense(t.n*3, 3, t.rows)
	b := mat.NewVecDense(t.n*3, t.rhs)

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return translationResult{}
	}

	var normal mat.Dense
	normal.Mul(a.T(), a)
	sym := mat.NewSymDense(3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			sym.SetSym(r, c, normal.At(r, c))
		}
	}
	var eig mat.EigenSym
	eig.Factorize(sym, false)
	values := eig.Values(nil)
	smallest := values[0]
	for _, v := range values {
		if v < smallest {
			smallest = v
		}
	}

	refined := refineTranslation(a, b, r3.Vector{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)})

	return translationResult{
		t:             refined,
		converged:     smallest >= minEigen,
		smallestEigen: smallest,
	}
}

// refineTranslation polishes the linear least-squares solution with a
// gradient-free local search, matching the original's pattern of treating
// the linear hand-eye solve as an initial guess rather than a final
// answer. Falls back silently to the linear solution on no_cgo builds or
// if NLopt fails to improve on it.
func refineTranslation(a *mat.Dense, b *mat.VecDense, linear r3.Vector) r3.Vector {
	minimizer, err := solver.NewMinimizer(3)
	if err != nil {
		return linear
	}
	objective := func(x []float64) float64 {
		residual := mat.NewVecDense(b.Len(), nil)
		residual.MulVec(a, mat.NewVecDense(3, x))
		residual.SubVec(residual, b)
		sum := 0.0
		for i := 0; i < residual.Len(); i++ {
			sum += residual.AtVec(i) * residual.AtVec(i)
		}
		return sum
	}
	solution, _, err := minimizer.Minimize(objective, []float64{linear.X, linear.Y, linear.Z})
	if err != nil {
		return linear
	}
	return r3.Vector{X: solution[0], Y: solution[1], Z: solution[2]}
}

// rotationMatrix converts a unit quaternion to a 3x3 rotation matrix, used
// to build the translation constraint's coefficients.
func rotationMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}
