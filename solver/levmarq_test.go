package solver

import (
	"math"
	"testing"

	"go.viam.com/test"
)

type offsetResidual struct {
	block  *Block
	target float64
}

func (r *offsetResidual) Blocks() []*Block { return []*Block{r.block} }
func (r *offsetResidual) Dim() int         { return 1 }
func (r *offsetResidual) Evaluate(values [][]float64) ([]float64, error) {
	return []float64{values[0][0] - r.target}, nil
}

func TestSolveConvergesScalarBlockToTarget(t *testing.T) {
	p := NewProblem()
	b := p.AddBlock(NewScalarBlock("x", 0, false))
	p.AddResidual(&offsetResidual{block: b, target: 3.5})

	summary, err := Solve(p, DefaultOptions())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(b.Value[0]-3.5) < 1e-4, test.ShouldBeTrue)
	test.That(t, summary.FinalCost < summary.InitialCost, test.ShouldBeTrue)
}

func TestSolveLeavesFixedBlockUnchanged(t *testing.T) {
	p := NewProblem()
	b := p.AddBlock(NewScalarBlock("x", 1.0, true))
	p.AddResidual(&offsetResidual{block: b, target: 9})

	_, err := Solve(p, DefaultOptions())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Value[0], test.ShouldEqual, 1.0)
}
