package pointcloud

import (
	"github.com/golang/geo/r3"

	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// Transform applies a pose (local frame -> parent frame) to every point in
// the cloud, matching the original estimator's repeated
// pcl::transformPointCloud(..., pose.T_) calls.
func Transform(points []r3.Vector, pose spatialmath.Pose) []r3.Vector {
	out := make([]r3.Vector, len(points))
	for i, p := range points {
		out[i] = pose.TransformPoint(p)
	}
	return out
}
