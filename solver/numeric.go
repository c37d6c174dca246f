package solver

const numericJump = 1e-6

// numericJacobian computes d(residual)/d(local tangent) for block bi by
// central differences, the same jump-and-measure idiom the teacher's
// nlopt-backed IK solver uses for its gradient (motionplan/ik).
func numericJacobian(r Residual, values [][]float64, bi int) ([]float64, error) {
	blocks := r.Blocks()
	b := blocks[bi]
	dim := r.Dim()
	local := b.Param.LocalDim()

	jac := make([]float64, dim*local)
	delta := make([]float64, local)
	original := values[bi]

	for j := 0; j < local; j++ {
		for k := range delta {
			delta[k] = 0
		}

		delta[j] = numericJump
		plusVals := cloneValues(values)
		plusVals[bi] = b.Param.Plus(original, delta)
		resPlus, err := r.Evaluate(plusVals)
		if err != nil {
			return nil, err
		}

		delta[j] = -numericJump
		minusVals := cloneValues(values)
		minusVals[bi] = b.Param.Plus(original, delta)
		resMinus, err := r.Evaluate(minusVals)
		if err != nil {
			return nil, err
		}

		for d := 0; d < dim; d++ {
			jac[d*local+j] = (resPlus[d] - resMinus[d]) / (2 * numericJump)
		}
	}
	return jac, nil
}

func cloneValues(values [][]float64) [][]float64 {
	out := make([][]float64, len(values))
	for i, v := range values {
		c := make([]float64, len(v))
		copy(c, v)
		out[i] = c
	}
	return out
}

// jacobianFor returns the residual's Jacobian w.r.t. each of its blocks
// (one entry per block, in Blocks() order), preferring
// an analytic implementation when the residual provides one.
func jacobianFor(r Residual, values [][]float64) ([][]float64, error) {
	if a, ok := r.(AnalyticJacobian); ok {
		return a.Jacobian(values)
	}
	blocks := r.Blocks()
	out := make([][]float64, len(blocks))
	for i := range blocks {
		j, err := numericJacobian(r, values, i)
		if err != nil {
			return nil, err
		}
		out[i] = j
	}
	return out, nil
}
