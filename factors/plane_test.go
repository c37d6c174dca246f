package factors

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/mlo-robotics/mlo-estimator/solver"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

func TestPlaneResidualZeroWhenPointOnPlane(t *testing.T) {
	pivot := solver.NewPoseBlock("pivot", spatialmath.Identity(), true)
	pose := solver.NewPoseBlock("pose", spatialmath.Identity(), true)
	ex := solver.NewPoseBlock("ex", spatialmath.Identity(), true)

	f := &Plane{
		PivotBlock: pivot, PoseBlock: pose, ExBlock: ex,
		Point:  r3.Vector{X: 1, Y: 2, Z: 0},
		Normal: r3.Vector{Z: 1},
		D:      0,
	}
	res, err := f.Evaluate([][]float64{pivot.Value, pose.Value, ex.Value})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(res[0]), test.ShouldBeLessThan, 1e-9)
}

func TestPlaneResidualNonzeroOffPlane(t *testing.T) {
	pivot := solver.NewPoseBlock("pivot", spatialmath.Identity(), true)
	pose := solver.NewPoseBlock("pose", spatialmath.Identity(), true)
	ex := solver.NewPoseBlock("ex", spatialmath.Identity(), true)

	f := &Plane{
		PivotBlock: pivot, PoseBlock: pose, ExBlock: ex,
		Point:  r3.Vector{X: 0, Y: 0, Z: 2},
		Normal: r3.Vector{Z: 1},
		D:      0,
	}
	res, _ := f.Evaluate([][]float64{pivot.Value, pose.Value, ex.Value})
	test.That(t, res[0], test.ShouldEqual, 2.0)
}
