package solver

// EvaluateResidual runs a residual at its blocks' current values and
// returns both its residual vector and its per-block Jacobian (analytic
// if the residual provides one, numeric otherwise), regardless of any
// block's Fixed flag. The marginalizer needs Jacobians against blocks
// that are about to be dropped, which Solve's own assembly intentionally
// skips.
func EvaluateResidual(r Residual) ([]float64, [][]float64, error) {
	blocks := r.Blocks()
	values := make([][]float64, len(blocks))
	for i, b := range blocks {
		values[i] = b.Value
	}
	res, err := r.Evaluate(values)
	if err != nil {
		return nil, nil, err
	}
	jac, err := jacobianFor(r, values)
	if err != nil {
		return nil, nil, err
	}
	return res, jac, nil
}
