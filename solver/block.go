// Package solver implements the estimator's nonlinear least-squares engine
// (spec.md §4.5-4.6, C6): a parameter-block arena, pluggable residual
// factors, and a Levenberg-Marquardt loop with degeneracy-aware stepping.
package solver

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// LocalParam maps a block's ambient storage to a lower-dimensional tangent
// space the solver actually steps in, mirroring the original's manifold
// parameterizations (xyz + quaternion -> 6 DOF).
type LocalParam interface {
	// AmbientDim is the size of the block's raw storage.
	AmbientDim() int
	// LocalDim is the size of the tangent space the solver steps in.
	LocalDim() int
	// Plus applies a tangent delta to ambient value x, returning the new
	// ambient value.
	Plus(x []float64, delta []float64) []float64
}

// PoseParam is the 7-number (translation + quaternion) manifold
// parameterization shared by pose and extrinsic blocks.
type PoseParam struct{}

// AmbientDim is 7: t.x, t.y, t.z, q.w, q.x, q.y, q.z.
func (PoseParam) AmbientDim() int { return 7 }

// LocalDim is 6: a so(3) rotation delta followed by a translation delta.
func (PoseParam) LocalDim() int { return 6 }

// Plus applies a rotation-first twist [omega; rho] via spatialmath.Exp,
// composed on the right of the current pose.
func (PoseParam) Plus(x []float64, delta []float64) []float64 {
	p := PoseFromVector(x)
	dPose := spatialmath.Exp(spatialmath.Twist{delta[0], delta[1], delta[2], delta[3], delta[4], delta[5]})
	updated := p.Compose(dPose)
	return VectorFromPose(updated)
}

// ScalarParam is the trivial 1-dimensional parameterization used for
// per-sensor time-offset blocks.
type ScalarParam struct{}

func (ScalarParam) AmbientDim() int { return 1 }
func (ScalarParam) LocalDim() int   { return 1 }
func (ScalarParam) Plus(x, delta []float64) []float64 {
	return []float64{x[0] + delta[0]}
}

// PoseFromVector decodes a 7-number ambient vector (tx,ty,tz,qw,qx,qy,qz)
// into a Pose.
func PoseFromVector(x []float64) spatialmath.Pose {
	return spatialmath.NewPose(
		quat.Number{Real: x[3], Imag: x[4], Jmag: x[5], Kmag: x[6]},
		r3.Vector{X: x[0], Y: x[1], Z: x[2]},
		0,
	)
}

// VectorFromPose encodes a Pose into the 7-number ambient layout.
func VectorFromPose(p spatialmath.Pose) []float64 {
	t := p.Translation()
	q := p.Quaternion()
	return []float64{t.X, t.Y, t.Z, q.Real, q.Imag, q.Jmag, q.Kmag}
}

// Block is one parameter block in the optimization: a pose, an extrinsic,
// or a time offset. Fixed blocks are held constant by the solver and are
// skipped entirely when the normal equations are assembled.
type Block struct {
	ID    string
	Value []float64
	Param LocalParam
	Fixed bool

	// Projector, when non-nil, is the degeneracy analyzer's V_i: the
	// solver replaces this block's would-be tangent delta with
	// Projector · delta before taking a step, per spec.md §4.6.
	Projector *mat.Dense
}

// NewPoseBlock builds a fixed-or-free pose/extrinsic block from a Pose.
func NewPoseBlock(id string, p spatialmath.Pose, fixed bool) *Block {
	return &Block{ID: id, Value: VectorFromPose(p), Param: PoseParam{}, Fixed: fixed}
}

// NewScalarBlock builds a fixed-or-free scalar block (e.g. a time offset).
func NewScalarBlock(id string, v float64, fixed bool) *Block {
	return &Block{ID: id, Value: []float64{v}, Param: ScalarParam{}, Fixed: fixed}
}

// Pose decodes the block's ambient value as a Pose. Only valid for blocks
// built with NewPoseBlock.
func (b *Block) Pose() spatialmath.Pose { return PoseFromVector(b.Value) }
