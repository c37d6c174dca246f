package marginal

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/mlo-robotics/mlo-estimator/factors"
	"github.com/mlo-robotics/mlo-estimator/solver"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

func TestReduceReturnsNilWithoutTouchingResiduals(t *testing.T) {
	pivot := solver.NewPoseBlock("pose:0", spatialmath.Identity(), true)
	ex := solver.NewPoseBlock("ex:0", spatialmath.Identity(), true)

	residual := &factors.ExtrinsicPrior{ExBlock: ex}

	drop := map[*solver.Block]bool{pivot: true}
	out, err := Reduce([]solver.Residual{residual}, nil, drop)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldBeNil)
}

func TestReduceProducesPriorOverRetainedBlock(t *testing.T) {
	pivot := solver.NewPoseBlock("pose:0", spatialmath.Identity(), true)
	other := solver.NewPoseBlock("pose:1", spatialmath.NewPose(spatialmath.Identity().Quaternion(), r3.Vector{X: 0.1}, 0), false)
	ex := solver.NewPoseBlock("ex:0", spatialmath.Identity(), true)

	// frame is a stand-in pivot for otherResidual, distinct from the block
	// actually being dropped, so otherResidual doesn't touch the drop set
	// and is excluded from the reduction entirely.
	frame := solver.NewPoseBlock("frame", spatialmath.Identity(), true)

	// PoseBlock is the dropped pivot block itself here, collapsing the
	// live pose onto it so this residual's only surviving column is
	// ex:0, matching the retained-set expectation below.
	residual := &factors.Plane{
		PivotBlock: pivot, PoseBlock: pivot, ExBlock: ex,
		Point: r3.Vector{X: 1, Y: 0, Z: 0}, Normal: r3.Vector{Z: 1},
	}
	otherResidual := &factors.Plane{
		PivotBlock: frame, PoseBlock: other, ExBlock: ex,
		Point: r3.Vector{X: 1, Y: 0, Z: 0}, Normal: r3.Vector{Z: 1},
	}
	// pivotPrior constrains all six directions of the dropped block, so its
	// Hessian sub-block is invertible; the scalar plane residual alone
	// would leave it rank one, which Reduce rejects as singular. It touches
	// only the dropped block, so the retained set is still just ex:0.
	pivotPrior := &factors.ExtrinsicPrior{ExBlock: pivot, Prior: spatialmath.Identity()}

	drop := map[*solver.Block]bool{pivot: true}
	out, err := Reduce([]solver.Residual{residual, pivotPrior, otherResidual}, nil, drop)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldNotBeNil)
	test.That(t, len(out.Blocks()), test.ShouldEqual, 1)
	test.That(t, out.Blocks()[0].ID, test.ShouldEqual, "ex:0")
}
