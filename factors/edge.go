package factors

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/mlo-robotics/mlo-estimator/solver"
)

// Edge ties the pivot pose block, a live pose block and an extrinsic
// block to an edge-to-map correspondence: the point should land on the
// map line (through LinePoint, direction Direction) once transformed
// into the pivot frame through pivot^-1 * pose[i] * ex_pose[n]. The
// residual is the 2-norm of the point-to-line offset, matching the
// original's edge factor (disabled by default per spec.md's open
// question on edge features in odometry mode).
type Edge struct {
	PivotBlock *solver.Block
	PoseBlock  *solver.Block
	ExBlock    *solver.Block
	Point      r3.Vector
	LinePoint  r3.Vector
	Direction  r3.Vector
	Weight     float64
}

// Blocks returns [pivot, pose, extrinsic], for the same marginalization
// reason as Plane.Blocks.
func (f *Edge) Blocks() []*solver.Block { return []*solver.Block{f.PivotBlock, f.PoseBlock, f.ExBlock} }

// Dim is 1: the scalar perpendicular offset magnitude.
func (f *Edge) Dim() int { return 1 }

func (f *Edge) Evaluate(values [][]float64) ([]float64, error) {
	pivot := solver.PoseFromVector(values[0])
	pose := solver.PoseFromVector(values[1])
	ex := solver.PoseFromVector(values[2])
	p := pivot.Inverse().Compose(pose).Compose(ex).TransformPoint(f.Point)

	dir := f.Direction.Normalize()
	offset := p.Sub(f.LinePoint)
	perp := offset.Sub(dir.Mul(offset.Dot(dir)))

	weight := f.Weight
	if weight == 0 {
		weight = 1
	}
	return []float64{weight * math.Sqrt(perp.Dot(perp)+1e-12)}, nil
}
