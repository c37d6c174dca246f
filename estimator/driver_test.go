package estimator

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"go.viam.com/utils"

	"github.com/mlo-robotics/mlo-estimator/pointcloud"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

func planarCloud() pointcloud.RawCloud {
	return pointcloud.RawCloud{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 1, Y: 1, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 0, Y: 2, Z: 0},
	}
}

func singleSensorConfig() Config {
	cfg := DefaultConfig(1, 0)
	cfg.Solver.CheckJacobians = false
	return cfg
}

func TestNewEstimatorRejectsInvalidConfig(t *testing.T) {
	cfg := singleSensorConfig()
	cfg.NumSensors = 0
	_, err := NewEstimator(cfg, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewEstimatorRequiresOneTrackerPerSensor(t *testing.T) {
	cfg := DefaultConfig(2, 0)
	_, err := NewEstimator(cfg, []Tracker{IdentityTracker{}}, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestInputCloudRejectsMismatchedCloudCount(t *testing.T) {
	cfg := singleSensorConfig()
	est, err := NewEstimator(cfg, []Tracker{IdentityTracker{}}, nil)
	test.That(t, err, test.ShouldBeNil)

	err = est.InputCloud(0, nil, []pointcloud.RawCloud{{}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFirstFrameSeedsWindowWithoutSliding(t *testing.T) {
	cfg := singleSensorConfig()
	est, err := NewEstimator(cfg, []Tracker{IdentityTracker{}}, nil)
	test.That(t, err, test.ShouldBeNil)

	err = est.InputCloud(1.5, []pointcloud.RawCloud{planarCloud()}, []pointcloud.RawCloud{{}})
	test.That(t, err, test.ShouldBeNil)

	snap := est.Snapshot()
	test.That(t, snap.SolverFlag, test.ShouldEqual, Initial)
	test.That(t, snap.Stamp, test.ShouldEqual, 1.5)
}

func TestWindowFillsAndStaysAtIdentityUnderZeroMotion(t *testing.T) {
	cfg := singleSensorConfig()
	est, err := NewEstimator(cfg, []Tracker{IdentityTracker{}}, nil)
	test.That(t, err, test.ShouldBeNil)

	cloud := planarCloud()
	for i := 0; i <= cfg.WindowSize+2; i++ {
		err := est.InputCloud(float64(i), []pointcloud.RawCloud{cloud}, []pointcloud.RawCloud{{}})
		test.That(t, err, test.ShouldBeNil)
	}

	snap := est.Snapshot()
	test.That(t, snap.SolverFlag, test.ShouldEqual, NonLinear)
	test.That(t, spatialmath.AlmostEqual(snap.Pose, spatialmath.Identity(), 1e-9), test.ShouldBeTrue)
}

// constantTracker reports the same relative motion on every call, letting a
// test drive the estimator with a known, non-zero per-frame body motion.
type constantTracker struct {
	motion spatialmath.Pose
}

func (c constantTracker) Track(int, pointcloud.RawCloud, pointcloud.RawCloud) (spatialmath.Pose, error) {
	return c.motion, nil
}

func TestPureTranslationAccumulatesIntoLatestPose(t *testing.T) {
	cfg := singleSensorConfig()
	step := spatialmath.NewPose(spatialmath.Identity().Quaternion(), r3.Vector{X: 1}, 0)
	est, err := NewEstimator(cfg, []Tracker{constantTracker{motion: step}}, nil)
	test.That(t, err, test.ShouldBeNil)

	cloud := planarCloud()
	frames := cfg.WindowSize + 1
	for i := 0; i <= frames; i++ {
		err := est.InputCloud(float64(i), []pointcloud.RawCloud{cloud}, []pointcloud.RawCloud{{}})
		test.That(t, err, test.ShouldBeNil)
	}

	snap := est.Snapshot()
	test.That(t, snap.Pose.Translation().X, test.ShouldEqual, float64(frames))
}

// TestBootstrapHoldsInitialUntilInitializerConverges exercises
// cycle.go's gate between ExtrinsicBootstrap and the nonlinear solver:
// with the default (deliberately strict) calibration thresholds and a
// sensor pair that never actually moves, the initializer never
// converges, so the window is allowed to fill completely without ever
// promoting either CalibMode or SolverFlag out of their starting
// values (runBootstrap's AllConverged gate, optimizeMap's Mode-gated
// call in processOne).
func TestBootstrapHoldsInitialUntilInitializerConverges(t *testing.T) {
	cfg := DefaultConfig(2, 0)
	cfg.InitialExtrinsicMode = ExtrinsicBootstrap

	est, err := NewEstimator(cfg, []Tracker{IdentityTracker{}, IdentityTracker{}}, nil)
	test.That(t, err, test.ShouldBeNil)

	empty := []pointcloud.RawCloud{{}, {}}
	for i := 0; i <= cfg.WindowSize+2; i++ {
		err := est.InputCloud(float64(i), empty, empty)
		test.That(t, err, test.ShouldBeNil)
	}

	snap := est.Snapshot()
	test.That(t, snap.CalibMode, test.ShouldEqual, ExtrinsicBootstrap)
	test.That(t, snap.SolverFlag, test.ShouldEqual, Initial)
}

func TestWorkerGoroutineIsJoinedOnClose(t *testing.T) {
	cfg := singleSensorConfig()
	cfg.MultipleThread = true
	est, err := NewEstimator(cfg, []Tracker{IdentityTracker{}}, nil)
	test.That(t, err, test.ShouldBeNil)

	cloud := planarCloud()
	err = est.InputCloud(0, []pointcloud.RawCloud{cloud}, []pointcloud.RawCloud{{}})
	test.That(t, err, test.ShouldBeNil)

	est.Close()
	test.That(t, utils.FindGoroutineLeaks(), test.ShouldBeNil)
}

func TestClearStateResetsToInitial(t *testing.T) {
	cfg := singleSensorConfig()
	est, err := NewEstimator(cfg, []Tracker{IdentityTracker{}}, nil)
	test.That(t, err, test.ShouldBeNil)

	cloud := planarCloud()
	for i := 0; i <= cfg.WindowSize+2; i++ {
		err := est.InputCloud(float64(i), []pointcloud.RawCloud{cloud}, []pointcloud.RawCloud{{}})
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, est.Snapshot().SolverFlag, test.ShouldEqual, NonLinear)

	est.ClearState()
	test.That(t, est.Snapshot().SolverFlag, test.ShouldEqual, Initial)
}
