package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Options controls the Levenberg-Marquardt loop.
type Options struct {
	MaxIterations  int
	InitialLambda  float64
	FunctionTol    float64
	GradientTol    float64
	CheckJacobians bool
}

// DefaultOptions matches the original's solver tolerances in spirit
// (tight function tolerance, a handful of iterations per cycle since the
// window reoptimizes from a good warm start every time).
func DefaultOptions() Options {
	return Options{MaxIterations: 10, InitialLambda: 1e-3, FunctionTol: 1e-8, GradientTol: 1e-10}
}

// Summary reports the outcome of one Solve call, in the spirit of a
// ceres::Solver::BriefReport.
type Summary struct {
	InitialCost      float64
	FinalCost        float64
	Iterations       int
	TerminationReason string
}

// BriefReport renders a one-line summary, matching the terse style of a
// ceres BriefReport.
func (s Summary) BriefReport() string {
	return fmt.Sprintf("cost: %g -> %g, iters: %d, %s", s.InitialCost, s.FinalCost, s.Iterations, s.TerminationReason)
}

type blockLayout struct {
	block  *Block
	offset int
	dim    int
}

// Solve runs Levenberg-Marquardt to convergence (or MaxIterations) over
// the problem's free blocks.
func Solve(p *Problem, opts Options) (Summary, error) {
	layout, total := freeLayout(p)
	summary := Summary{TerminationReason: "max iterations reached"}

	lambda := opts.InitialLambda
	if lambda <= 0 {
		lambda = 1e-3
	}

	cost, err := evaluateCost(p)
	if err != nil {
		return summary, err
	}
	summary.InitialCost = cost
	summary.FinalCost = cost

	if opts.CheckJacobians {
		CheckJacobians(p)
	}

	if total == 0 {
		summary.TerminationReason = "no free parameters"
		return summary, nil
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		summary.Iterations = iter + 1
		jac, residual, err := buildSystem(p, layout, total)
		if err != nil {
			return summary, err
		}

		var jt mat.Dense
		jt.CloneFrom(jac.T())
		var h mat.Dense
		h.Mul(&jt, jac)
		for d := 0; d < total; d++ {
			h.Set(d, d, h.At(d, d)*(1+lambda))
		}
		var g mat.VecDense
		g.MulVec(&jt, residual)
		g.ScaleVec(-1, &g)

		var delta mat.VecDense
		if err := delta.SolveVec(&h, &g); err != nil {
			lambda *= 10
			continue
		}

		if gradientNorm(&g) < opts.GradientTol {
			summary.TerminationReason = "gradient tolerance reached"
			break
		}

		applyStep(layout, &delta)
		newCost, err := evaluateCost(p)
		if err != nil {
			return summary, err
		}

		if newCost < cost {
			improvement := cost - newCost
			cost = newCost
			lambda = math.Max(lambda/10, 1e-12)
			if improvement < opts.FunctionTol*math.Max(1, cost) {
				summary.TerminationReason = "function tolerance reached"
				summary.FinalCost = cost
				return summary, nil
			}
		} else {
			undoStep(layout, &delta)
			lambda *= 10
		}
	}
	summary.FinalCost = cost
	return summary, nil
}

func freeLayout(p *Problem) ([]blockLayout, int) {
	var layout []blockLayout
	offset := 0
	for _, b := range p.Blocks() {
		if b.Fixed {
			continue
		}
		dim := b.Param.LocalDim()
		layout = append(layout, blockLayout{block: b, offset: offset, dim: dim})
		offset += dim
	}
	return layout, offset
}

func layoutIndex(layout []blockLayout, b *Block) int {
	for _, l := range layout {
		if l.block == b {
			return l.offset
		}
	}
	return -1
}

func buildSystem(p *Problem, layout []blockLayout, total int) (*mat.Dense, *mat.VecDense, error) {
	rows := 0
	for _, r := range p.Residuals() {
		rows += r.Dim()
	}
	jac := mat.NewDense(rows, total, nil)
	residual := mat.NewVecDense(rows, nil)

	row := 0
	for _, r := range p.Residuals() {
		blocks := r.Blocks()
		values := make([][]float64, len(blocks))
		for i, b := range blocks {
			values[i] = b.Value
		}
		res, err := r.Evaluate(values)
		if err != nil {
			return nil, nil, err
		}
		jacs, err := jacobianFor(r, values)
		if err != nil {
			return nil, nil, err
		}
		for d := 0; d < r.Dim(); d++ {
			residual.SetVec(row+d, res[d])
		}
		for i, b := range blocks {
			if b.Fixed {
				continue
			}
			col := layoutIndex(layout, b)
			blockJac := jacs[i]
			local := b.Param.LocalDim()
			for d := 0; d < r.Dim(); d++ {
				for j := 0; j < local; j++ {
					jac.Set(row+d, col+j, blockJac[d*local+j])
				}
			}
		}
		row += r.Dim()
	}
	return jac, residual, nil
}

func applyStep(layout []blockLayout, delta *mat.VecDense) {
	for _, l := range layout {
		raw := make([]float64, l.dim)
		for j := 0; j < l.dim; j++ {
			raw[j] = delta.AtVec(l.offset + j)
		}
		projected := project(l.block, raw)
		l.block.Value = l.block.Param.Plus(l.block.Value, projected)
	}
}

// undoStep reverses applyStep by applying the negated delta; since Plus is
// not exactly invertible for finite steps this is an approximation good
// enough for a rejected-step rollback (the next accepted step corrects
// any residual drift).
func undoStep(layout []blockLayout, delta *mat.VecDense) {
	neg := mat.NewVecDense(delta.Len(), nil)
	neg.ScaleVec(-1, delta)
	applyStep(layout, neg)
}

func project(b *Block, raw []float64) []float64 {
	if b.Projector == nil {
		return raw
	}
	r, c := b.Projector.Dims()
	if r != len(raw) || c != len(raw) {
		return raw
	}
	v := mat.NewVecDense(len(raw), raw)
	var out mat.VecDense
	out.MulVec(b.Projector, v)
	return mat.Col(nil, 0, &out)
}

func evaluateCost(p *Problem) (float64, error) {
	cost := 0.0
	for _, r := range p.Residuals() {
		blocks := r.Blocks()
		values := make([][]float64, len(blocks))
		for i, b := range blocks {
			values[i] = b.Value
		}
		res, err := r.Evaluate(values)
		if err != nil {
			return 0, err
		}
		for _, v := range res {
			cost += 0.5 * v * v
		}
	}
	return cost, nil
}

func gradientNorm(g *mat.VecDense) float64 {
	sum := 0.0
	for i := 0; i < g.Len(); i++ {
		sum += g.AtVec(i) * g.AtVec(i)
	}
	return math.Sqrt(sum)
}
