package localmap

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mlo-robotics/mlo-estimator/pointcloud"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
	"github.com/mlo-robotics/mlo-estimator/window"
)

func identityPoses(n int) []spatialmath.Pose {
	poses := make([]spatialmath.Pose, n)
	for i := range poses {
		poses[i] = spatialmath.Identity()
	}
	return poses
}

func flatPlaneCloud() pointcloud.RawCloud {
	return pointcloud.RawCloud{
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1},
		{X: 1, Y: 1, Z: 1}, {X: 0.5, Y: 0.5, Z: 1},
	}
}

func TestRebuildProducesReferenceMap(t *testing.T) {
	win := window.New(1, 1)
	for i := 0; i <= win.Size(); i++ {
		win.SetPose(i, spatialmath.NewPose(quat.Number{Real: 1}, r3.Vector{}, 0))
		win.SetSurf(0, i, flatPlaneCloud())
	}
	b := New(1, 0, 0, DefaultLeafSizes(), DefaultNeighborCounts())
	maps := b.Rebuild(win, identityPoses(1), Odometry)
	test.That(t, len(maps), test.ShouldEqual, 1)
	test.That(t, len(maps[0].Surf) > 0, test.ShouldBeTrue)
}

func TestRebuildSeedsNonReferenceFromReferenceInCalibMode(t *testing.T) {
	win := window.New(1, 2)
	for i := 0; i <= win.Size(); i++ {
		win.SetPose(i, spatialmath.Identity())
		win.SetSurf(0, i, flatPlaneCloud())
	}
	b := New(2, 0, 0, DefaultLeafSizes(), DefaultNeighborCounts())
	maps := b.Rebuild(win, identityPoses(2), Calibrating)
	test.That(t, len(maps[1].Surf), test.ShouldEqual, len(maps[0].Surf))
}

func TestMatchProducesFeaturesAgainstOwnMap(t *testing.T) {
	win := window.New(1, 1)
	for i := 0; i <= win.Size(); i++ {
		win.SetPose(i, spatialmath.Identity())
		win.SetSurf(0, i, flatPlaneCloud())
	}
	b := New(1, 0, 0, DefaultLeafSizes(), DefaultNeighborCounts())
	extrinsics := identityPoses(1)
	maps := b.Rebuild(win, extrinsics, Odometry)
	matches := b.Match(win, maps, extrinsics, Odometry)
	test.That(t, len(matches), test.ShouldEqual, win.Size()+1)
	total := 0
	for _, slot := range matches {
		total += len(slot)
	}
	test.That(t, total > 0, test.ShouldBeTrue)
}
