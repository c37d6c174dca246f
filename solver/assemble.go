package solver

import "gonum.org/v1/gonum/mat"

// Layout describes where one free block's tangent columns land in an
// assembled Jacobian, for collaborators (the degeneracy analyzer, the
// marginalizer) that need to read the problem's linear system directly.
type Layout struct {
	Block  *Block
	Offset int
	Dim    int
}

// Assemble evaluates every residual at the problem's current block values
// and returns the stacked Jacobian (rows = residual dims, cols = free
// tangent dims) together with the column layout and residual vector.
func Assemble(p *Problem) (*mat.Dense, []Layout, *mat.VecDense, error) {
	internal, total := freeLayout(p)
	jac, residual, err := buildSystem(p, internal, total)
	if err != nil {
		return nil, nil, nil, err
	}
	layout := make([]Layout, len(internal))
	for i, l := range internal {
		layout[i] = Layout{Block: l.block, Offset: l.offset, Dim: l.dim}
	}
	return jac, layout, residual, nil
}
