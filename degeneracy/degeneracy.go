// Package degeneracy implements the estimator's degeneracy analyzer
// (spec.md §4.6, C7): after the solver's first evaluation of a cycle, it
// eigendecomposes each 6-DOF block's diagonal Hessian sub-block and, for
// ill-conditioned directions, installs a projector on the block so the
// solver's update is restricted to the observable subspace.
package degeneracy

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mlo-robotics/mlo-estimator/solver"
)

// BlockReport is the outcome of analyzing one 6-DOF block.
type BlockReport struct {
	BlockID        string
	Degenerate     bool
	SmallestEigen  float64
	Eigenvalues    []float64
}

// Analyze forms H = JᵀJ from the problem's currently assembled Jacobian
// and eigendecomposes every 6-dimensional block's diagonal sub-block,
// returning one report per such block. A block found degenerate (an
// eigenvalue below threshold) gets a projector installed (spec.md §4.6);
// any other block's projector is cleared. Blocks whose local dimension
// isn't 6 (time-offset blocks) are skipped.
func Analyze(jac *mat.Dense, layout []solver.Layout, threshold float64) []BlockReport {
	return AnalyzeWithThresholds(jac, layout, func(string) float64 { return threshold })
}

// AnalyzeWithThresholds is Analyze with a per-block threshold, so a caller
// tracking an AdaptiveThreshold for extrinsic blocks (spec.md §4.6's
// "i > OPT_WINDOW_SIZE" branch) can feed each block its own τ[i] while
// pose blocks use the fixed floor.
func AnalyzeWithThresholds(jac *mat.Dense, layout []solver.Layout, thresholdFor func(blockID string) float64) []BlockReport {
	var jt mat.Dense
	jt.CloneFrom(jac.T())
	var h mat.Dense
	h.Mul(&jt, jac)

	reports := make([]BlockReport, 0, len(layout))
	for _, l := range layout {
		if l.Dim != 6 {
			continue
		}
		reports = append(reports, analyzeBlock(&h, l, thresholdFor(l.Block.ID)))
	}
	return reports
}

func analyzeBlock(h *mat.Dense, l solver.Layout, threshold float64) BlockReport {
	sym := mat.NewSymDense(6, nil)
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			sym.SetSym(r, c, h.At(l.Offset+r, l.Offset+c))
		}
	}

	var eig mat.EigenSym
	eig.Factorize(sym, true)
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	report := BlockReport{BlockID: l.Block.ID, Eigenvalues: values}
	smallest := values[0]
	degenerateCols := make([]int, 0, 6)
	for i, v := range values {
		if v < smallest {
			smallest = v
		}
		if v < threshold {
			degenerateCols = append(degenerateCols, i)
		}
	}
	report.SmallestEigen = smallest

	if len(degenerateCols) == 0 {
		l.Block.Projector = nil
		return report
	}
	report.Degenerate = true

	vp := mat.DenseCopyOf(&vectors)
	for _, col := range degenerateCols {
		for r := 0; r < 6; r++ {
			vp.Set(r, col, 0)
		}
	}
	var vpT mat.Dense
	vpT.CloneFrom(vp.T())
	var projector mat.Dense
	projector.Mul(&vectors, &vpT)
	l.Block.Projector = &projector

	return report
}
