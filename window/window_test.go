package window

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mlo-robotics/mlo-estimator/pointcloud"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

func poseAt(x float64) spatialmath.Pose {
	return spatialmath.NewPose(quat.Number{Real: 1}, r3.Vector{X: x}, 0)
}

func TestSlideDropsOldestAndDuplicatesTail(t *testing.T) {
	w := New(3, 1)
	for i := 0; i <= w.Size(); i++ {
		w.SetPose(i, poseAt(float64(i)))
		w.SetStamp(i, float64(i))
	}
	w.Slide()

	// logical 0..2 now hold what used to be 1..3, and the new tail (3)
	// duplicates the old tail's value so the driver can overwrite it.
	for i := 0; i < w.Size(); i++ {
		test.That(t, w.Stamp(i), test.ShouldEqual, float64(i+1))
	}
	test.That(t, w.Stamp(w.Size()), test.ShouldEqual, float64(w.Size()))
}

func TestDoubleSlideOnFirstFillNormalizesSpacing(t *testing.T) {
	w := New(2, 1)
	for i := 0; i <= w.Size(); i++ {
		w.SetStamp(i, float64(i))
	}
	// The driver slides twice the moment the window first fills.
	w.Slide()
	w.Slide()
	test.That(t, w.Stamp(0), test.ShouldEqual, float64(2))
	test.That(t, w.Stamp(1), test.ShouldEqual, float64(2))
	test.That(t, w.Stamp(2), test.ShouldEqual, float64(2))
}

func TestFeatureStacksSlideInLockstepWithPose(t *testing.T) {
	w := New(2, 2)
	for i := 0; i <= w.Size(); i++ {
		w.SetPose(i, poseAt(float64(i)))
		cloud := pointcloud.RawCloud{{X: float64(i)}}
		w.SetSurf(0, i, cloud)
		w.SetEdge(1, i, cloud)
	}
	w.Slide()
	test.That(t, w.Surf(0, 0)[0].X, test.ShouldEqual, 1.0)
	test.That(t, w.Edge(1, 0)[0].X, test.ShouldEqual, 1.0)
	test.That(t, w.Pose(0).Translation().X, test.ShouldEqual, 1.0)
}

func TestSnapshotPivotIsIndependentOfWindow(t *testing.T) {
	w := New(1, 1)
	w.SetPose(0, poseAt(5))
	w.SetSurf(0, 0, pointcloud.RawCloud{{X: 1}})

	snap := w.SnapshotPivot(0)
	w.SetSurf(0, 0, pointcloud.RawCloud{{X: 99}})

	test.That(t, snap.Surf[0][0].X, test.ShouldEqual, 1.0)
	test.That(t, snap.Pose.Translation().X, test.ShouldEqual, 5.0)
}

func TestTransformToPivotIsIdentityAtPivot(t *testing.T) {
	w := New(1, 1)
	w.SetPose(0, poseAt(3))
	w.SetPose(1, poseAt(3))
	w.SetSurf(0, 0, pointcloud.RawCloud{{X: 2}})

	out := w.TransformToPivot(0, 0, 0, pointcloud.Surface)
	test.That(t, out[0].X, test.ShouldEqual, 2.0)
}
