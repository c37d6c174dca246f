package estimator

import "github.com/mlo-robotics/mlo-estimator/spatialmath"

// CalibState carries the online-mutable bits spec.md's Design Notes §9
// splits out of the frozen Config: the current extrinsic-calibration
// mode and the rig's current best extrinsic estimate per sensor. It is
// always read and written under the estimator's process mutex; it has no
// lock of its own.
type CalibState struct {
	Mode       ExtrinsicMode
	Extrinsics []spatialmath.Pose
}

func newCalibState(cfg Config) CalibState {
	extrinsics := make([]spatialmath.Pose, len(cfg.InitialExtrinsics))
	copy(extrinsics, cfg.InitialExtrinsics)
	return CalibState{Mode: cfg.InitialExtrinsicMode, Extrinsics: extrinsics}
}

// Extrinsic returns the current extrinsic estimate for sensor n.
func (s CalibState) Extrinsic(n int) spatialmath.Pose { return s.Extrinsics[n] }
