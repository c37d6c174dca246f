package estimator

import (
	"github.com/mlo-robotics/mlo-estimator/pointcloud"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// Tracker is the per-sensor short-baseline scan-to-scan tracker spec.md
// §4.2/§4.3 treats as a collaborator the driver calls, not a piece of the
// core itself: given the previous and current accepted feature clouds for
// one sensor, it estimates that sensor's own relative motion between
// them, in the sensor's local frame.
type Tracker interface {
	Track(sensor int, previous, current pointcloud.RawCloud) (spatialmath.Pose, error)
}

// IdentityTracker always reports zero motion. It is a degenerate but
// valid Tracker for rigs that are known to be stationary (spec.md §8
// seed scenario 1) or for exercising the driver's control flow without a
// real scan matcher wired in.
type IdentityTracker struct{}

func (IdentityTracker) Track(int, pointcloud.RawCloud, pointcloud.RawCloud) (spatialmath.Pose, error) {
	return spatialmath.Identity(), nil
}
