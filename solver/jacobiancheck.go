package solver

import "math"

// JacobianCheckTolerance is the maximum allowed per-entry difference
// between an analytic and a numeric Jacobian before CheckJacobians flags
// a factor as suspect.
const JacobianCheckTolerance = 1e-4

// JacobianMismatch describes one residual whose analytic Jacobian
// disagreed with its numeric approximation beyond tolerance.
type JacobianMismatch struct {
	ResidualIndex int
	BlockIndex    int
	MaxDiff       float64
}

// CheckJacobians compares the analytic Jacobian of every residual in p (if
// it provides one) against central-difference numeric Jacobians. This is
// a development aid, disabled
// by default (spec.md §4.5); callers opt in via Options.CheckJacobians.
func CheckJacobians(p *Problem) []JacobianMismatch {
	var mismatches []JacobianMismatch
	for ri, r := range p.Residuals() {
		a, ok := r.(AnalyticJacobian)
		if !ok {
			continue
		}
		blocks := r.Blocks()
		values := make([][]float64, len(blocks))
		for i, b := range blocks {
			values[i] = b.Value
		}
		analytic, err := a.Jacobian(values)
		if err != nil {
			continue
		}
		for bi := range blocks {
			numeric, err := numericJacobian(r, values, bi)
			if err != nil {
				continue
			}
			maxDiff := 0.0
			for k := range numeric {
				d := math.Abs(numeric[k] - analytic[bi][k])
				if d > maxDiff {
					maxDiff = d
				}
			}
			if maxDiff > JacobianCheckTolerance {
				mismatches = append(mismatches, JacobianMismatch{ResidualIndex: ri, BlockIndex: bi, MaxDiff: maxDiff})
			}
		}
	}
	return mismatches
}
