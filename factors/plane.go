// Package factors implements the estimator's residual factor types:
// plane-to-map and edge-to-map correspondences, extrinsic priors,
// marginalization priors and the calibration-mode target-plane factor
// (spec.md §4.5).
package factors

import (
	"github.com/golang/geo/r3"

	"github.com/mlo-robotics/mlo-estimator/solver"
)

// Plane ties the pivot pose block, a live pose block and an extrinsic
// block to a single plane-to-map correspondence found by the matcher: the
// point, expressed in sensor n's local frame, should land on the map
// plane (normal, d) once transformed into the pivot frame through
// pivot^-1 * pose[i] * ex_pose[n], matching the frame the matcher itself
// used to find the correspondence (spec.md §4.5's pose[0]=pivot,
// pose[i-P]=live, ex_pose[n] factor).
type Plane struct {
	PivotBlock *solver.Block
	PoseBlock  *solver.Block
	ExBlock    *solver.Block
	Point      r3.Vector
	Normal     r3.Vector
	D          float64
	Weight     float64
}

// Blocks returns [pivot, pose, extrinsic]. The pivot block is always
// Fixed for the solve itself, but listing it lets the marginalizer see
// this factor as touching the pivot when it comes time to drop it.
func (f *Plane) Blocks() []*solver.Block { return []*solver.Block{f.PivotBlock, f.PoseBlock, f.ExBlock} }

// Dim is 1: the signed point-to-plane distance.
func (f *Plane) Dim() int { return 1 }

// Evaluate composes pivot^-1, pose[i] and ex_pose[n] at their current
// values and returns the weighted signed distance of the transformed
// point to the map plane.
func (f *Plane) Evaluate(values [][]float64) ([]float64, error) {
	pivot := solver.PoseFromVector(values[0])
	pose := solver.PoseFromVector(values[1])
	ex := solver.PoseFromVector(values[2])
	p := pivot.Inverse().Compose(pose).Compose(ex).TransformPoint(f.Point)
	weight := f.Weight
	if weight == 0 {
		weight = 1
	}
	return []float64{weight * (f.Normal.Dot(p) + f.D)}, nil
}
