package degeneracy

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/mlo-robotics/mlo-estimator/factors"
	"github.com/mlo-robotics/mlo-estimator/solver"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

func TestAnalyzeFlagsDegenerateBlockUnderSinglePlane(t *testing.T) {
	p := solver.NewProblem()
	pivot := p.AddBlock(solver.NewPoseBlock("pivot", spatialmath.Identity(), true))
	pose := p.AddBlock(solver.NewPoseBlock("pose", spatialmath.Identity(), false))
	ex := p.AddBlock(solver.NewPoseBlock("ex", spatialmath.Identity(), true))

	p.AddResidual(&factors.Plane{
		PivotBlock: pivot, PoseBlock: pose, ExBlock: ex,
		Point:  r3.Vector{X: 1, Y: 0, Z: 0},
		Normal: r3.Vector{Z: 1},
		D:      0,
	})

	jac, layout, _, err := solver.Assemble(p)
	test.That(t, err, test.ShouldBeNil)

	reports := Analyze(jac, layout, 1e-6)
	test.That(t, len(reports), test.ShouldEqual, 1)
	test.That(t, reports[0].Degenerate, test.ShouldBeTrue)
}

func TestAdaptiveThresholdIsMonotoneNonDecreasing(t *testing.T) {
	at := NewAdaptiveThreshold(0.01)
	tau1, clear1 := at.Update("ex:1", 0.05)
	test.That(t, clear1, test.ShouldBeFalse)
	test.That(t, tau1, test.ShouldEqual, 0.05)

	tau2, clear2 := at.Update("ex:1", 0.02)
	test.That(t, clear2, test.ShouldBeFalse)
	test.That(t, tau2, test.ShouldEqual, 0.05)

	_, clear3 := at.Update("ex:1", 0.001)
	test.That(t, clear3, test.ShouldBeTrue)
}
