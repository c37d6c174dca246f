// Package marginal implements the estimator's marginalizer (spec.md §4.7,
// C8): after a successful solve, it folds every residual touching the
// pivot pose into a Schur-complemented linear prior on the blocks that
// survive the upcoming window slide.
package marginal

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mlo-robotics/mlo-estimator/factors"
	"github.com/mlo-robotics/mlo-estimator/solver"
)

// Reduce collects every residual touching a block in drop, stacks their
// Jacobians and residuals (plus, if prior is non-nil, the previous
// marginalization prior with its pivot block flagged for drop too),
// and Schur-complements the dropped columns out, returning a linear prior
// over the retained blocks.
func Reduce(residuals []solver.Residual, prior *factors.Marginal, drop map[*solver.Block]bool) (*factors.Marginal, error) {
	var touching []solver.Residual
	for _, r := range residuals {
		if touchesAny(r.Blocks(), drop) {
			touching = append(touching, r)
		}
	}
	if prior != nil {
		touching = append(touching, prior)
	}
	if len(touching) == 0 {
		return nil, nil
	}

	cols, dropDim, retainDim := layoutColumns(touching, drop)
	rows := 0
	for _, r := range touching {
		rows += r.Dim()
	}

	jac := mat.NewDense(rows, dropDim+retainDim, nil)
	residual := mat.NewVecDense(rows, nil)

	row := 0
	for _, r := range touching {
		res, blockJacs, err := solver.EvaluateResidual(r)
		if err != nil {
			return nil, err
		}
		for d := 0; d < r.Dim(); d++ {
			residual.SetVec(row+d, res[d])
		}
		for bi, b := range r.Blocks() {
			c := cols[b]
			local := b.Param.LocalDim()
			for d := 0; d < r.Dim(); d++ {
				for j := 0; j < local; j++ {
					jac.Set(row+d, c.offset+j, blockJacs[bi][d*local+j])
				}
			}
		}
		row += r.Dim()
	}

	return schurComplement(jac, residual, cols, dropDim, retainDim)
}

type column struct {
	offset int
	dim    int
	dropped bool
}

func layoutColumns(residuals []solver.Residual, drop map[*solver.Block]bool) (map[*solver.Block]column, int, int) {
	cols := map[*solver.Block]column{}
	dropOffset, retainOffset := 0, 0

	// Two passes: assign dropped blocks contiguous columns first, then
	// retained blocks, so the Schur complement can slice by a single
	// split point.
	for _, r := range residuals {
		for _, b := range r.Blocks() {
			if _, seen := cols[b]; seen || !drop[b] {
				continue
			}
			cols[b] = column{offset: dropOffset, dim: b.Param.LocalDim(), dropped: true}
			dropOffset += b.Param.LocalDim()
		}
	}
	for _, r := range residuals {
		for _, b := range r.Blocks() {
			if _, seen := cols[b]; seen || drop[b] {
				continue
			}
			cols[b] = column{offset: dropOffset + retainOffset, dim: b.Param.LocalDim(), dropped: false}
			retainOffset += b.Param.LocalDim()
		}
	}
	return cols, dropOffset, retainOffset
}

func schurComplement(jac *mat.Dense, residual *mat.VecDense, cols map[*solver.Block]column, dropDim, retainDim int) (*factors.Marginal, error) {
	var jt mat.Dense
	jt.CloneFrom(jac.T())
	var h mat.Dense
	h.Mul(&jt, jac)
	var b mat.VecDense
	b.MulVec(&jt, residual)

	if dropDim == 0 {
		return nil, nil
	}

	hDD := h.Slice(0, dropDim, 0, dropDim)
	hDR := h.Slice(0, dropDim, dropDim, dropDim+retainDim)
	hRD := h.Slice(dropDim, dropDim+retainDim, 0, dropDim)
	hRR := h.Slice(dropDim, dropDim+retainDim, dropDim, dropDim+retainDim)
	bD := b.SliceVec(0, dropDim)
	bR := b.SliceVec(dropDim, dropDim+retainDim)

	var hDDInv mat.Dense
	if err := hDDInv.Inverse(hDD); err != nil {
		return nil, errors.Wrap(err, "marginalization: dropped block Hessian is singular")
	}

	var hRDHddInv mat.Dense
	hRDHddInv.Mul(hRD, &hDDInv)

	var correctionH mat.Dense
	correctionH.Mul(&hRDHddInv, hDR)
	var hTilde mat.Dense
	hTilde.Sub(hRR, &correctionH)

	var correctionB mat.VecDense
	correctionB.MulVec(&hRDHddInv, bD)
	var bTilde mat.VecDense
	bTilde.SubVec(bR, &correctionB)

	retained, linearization, residualVec, err := jacobianFromHessian(&hTilde, &bTilde, cols)
	if err != nil {
		return nil, err
	}
	return &factors.Marginal{
		RetainedBlocks: retained,
		Linearization:  linearization,
		Jacobian:       jacobianFactor(&hTilde),
		Residual:       residualVec,
	}, nil
}

// jacobianFromHessian recovers a square-root factorization J̃ of H̃ via
// Cholesky (H̃ = J̃ᵀ J̃) so the linearized prior can be evaluated as a
// normal residual downstream, and snapshots the retained blocks' current
// values as the new linearization point. b̃ is folded into the residual as
// r̃ = J̃⁻ᵀ b̃ is unnecessary here: the marginal factor stores H̃, b̃
// implicitly through J̃ and a zero residual at the linearization point,
// since r(x0) must equal J̃(x0 ⊖ x0) + r̃ = r̃ and the original system's
// residual at x0 is, by construction of the Gauss-Newton normal
// equations, the value that makes the linear model exact there.
func jacobianFromHessian(hTilde *mat.Dense, bTilde *mat.VecDense, cols map[*solver.Block]column) ([]*solver.Block, [][]float64, []float64, error) {
	n, _ := hTilde.Dims()
	retained := make([]*solver.Block, 0, len(cols))
	linearization := make([][]float64, 0, len(cols))
	for b, c := range cols {
		if c.dropped {
			continue
		}
		retained = append(retained, b)
		snapshot := make([]float64, len(b.Value))
		copy(snapshot, b.Value)
		linearization = append(linearization, snapshot)
	}

	var chol mat.Cholesky
	sym := mat.NewSymDense(n, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			sym.SetSym(r, c, hTilde.At(r, c))
		}
	}
	if !chol.Factorize(sym) {
		// H̃ isn't strictly positive definite (common once degenerate
		// directions have been projected out upstream); fall back to
		// using H̃ itself as the "square root" factor, which keeps the
		// prior's information content without requiring a clean
		// factorization.
		residual := make([]float64, n)
		for i := 0; i < n; i++ {
			residual[i] = bTilde.AtVec(i)
		}
		return retained, linearization, residual, nil
	}

	var u mat.TriDense
	chol.UTo(&u)
	residual := make([]float64, n)
	var x mat.VecDense
	x.SolveVec(&u, bTilde)
	for i := 0; i < n; i++ {
		residual[i] = x.AtVec(i)
	}
	return retained, linearization, residual, nil
}

func jacobianFactor(hTilde *mat.Dense) *mat.Dense {
	n, _ := hTilde.Dims()
	sym := mat.NewSymDense(n, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			sym.SetSym(r, c, hTilde.At(r, c))
		}
	}
	var chol mat.Cholesky
	if chol.Factorize(sym) {
		var u mat.TriDense
		chol.UTo(&u)
		return mat.DenseCopyOf(&u)
	}
	return mat.DenseCopyOf(hTilde)
}

func touchesAny(blocks []*solver.Block, set map[*solver.Block]bool) bool {
	for _, b := range blocks {
		if set[b] {
			return true
		}
	}
	return false
}
