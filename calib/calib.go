// Package calib implements the estimator's extrinsic initializer (spec.md
// §4.3, C3): a hand-eye style rotation-then-translation bootstrap that
// estimates each non-reference sensor's extrinsic transform from sequences
// of relative poses, before the nonlinear solver takes over refinement.
package calib

import (
	"github.com/golang/geo/r3"

	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// Thresholds controls the convergence criteria for rotation and
// translation bootstrap, matching the original's hard-coded constants
// (exposed here so a collaborator can tune them per rig).
type Thresholds struct {
	// RotationSingularRatio is the minimum ratio between the two smallest
	// singular values of the accumulated rotation Gramian for a sensor's
	// rotation to be declared converged.
	RotationSingularRatio float64
	// TranslationMinEigen is the minimum eigenvalue of the translation
	// normal matrix for a sensor's translation to be declared converged.
	TranslationMinEigen float64
}

// DefaultThresholds matches the conservative values used in the original
// M-LOAM bootstrap (a well-conditioned rig converges within a few hundred
// frames of general motion).
func DefaultThresholds() Thresholds {
	return Thresholds{RotationSingularRatio: 25, TranslationMinEigen: 0.25}
}

// sensorState tracks one non-reference sensor's bootstrap progress.
type sensorState struct {
	rotation    *rotationAccumulator
	translation *translationAccumulator

	rotationDone    bool
	translationDone bool
	extrinsic       spatialmath.Pose

	rotationRatio float64
	translEigen   float64
	frames        int
}

// Initializer accumulates relative-pose observations per non-reference
// sensor and reports, per sensor, whether rotation and translation have
// converged. Sensor idxRef never has state: its extrinsic is identity by
// construction and is never bootstrapped.
type Initializer struct {
	idxRef     int
	thresholds Thresholds
	sensors    map[int]*sensorState
}

// New creates an initializer for a rig whose reference sensor is idxRef.
func New(idxRef int, thresholds Thresholds) *Initializer {
	return &Initializer{idxRef: idxRef, thresholds: thresholds, sensors: map[int]*sensorState{}}
}

func (init *Initializer) stateFor(sensor int) *sensorState {
	s, ok := init.sensors[sensor]
	if !ok {
		s = &sensorState{rotation: newRotationAccumulator(), translation: &translationAccumulator{}}
		init.sensors[sensor] = s
	}
	return s
}

// AddObservation feeds one pair of relative poses observed over the same
// time interval by the reference sensor and sensor n: refMotion is the
// reference sensor's estimate of its own motion, otherMotion is sensor n's
// estimate of its own motion, both in their respective local frames. It
// is a no-op for the reference sensor itself.
func (init *Initializer) AddObservation(sensor int, refMotion, otherMotion spatialmath.Pose) {
	if sensor == init.idxRef {
		return
	}
	s := init.stateFor(sensor)
	s.frames++
	if !s.rotationDone {
		s.rotation.add(refMotion.Quaternion(), otherMotion.Quaternion())
		result := s.rotation.solve(init.thresholds.RotationSingularRatio)
		s.rotationRatio = result.singularRatio
		if result.converged {
			s.rotationDone = true
			s.extrinsic = spatialmath.NewPose(result.q, r3.Vector{}, 0)
		}
		return
	}
	if !s.translationDone {
		exRot := rotationMatrix(s.extrinsic.Quaternion())
		refRot := rotationMatrix(refMotion.Quaternion())
		s.translation.add(refRot, exRot, refMotion.Translation(), otherMotion.Translation())
		result := s.translation.solve(init.thresholds.TranslationMinEigen)
		s.translEigen = result.smallestEigen
		if result.converged {
			s.translationDone = true
			s.extrinsic = spatialmath.NewPose(s.extrinsic.Quaternion(), result.t, 0)
		}
	}
}

// RotationConverged reports whether sensor n's rotation has been solved.
func (init *Initializer) RotationConverged(sensor int) bool {
	if sensor == init.idxRef {
		return true
	}
	return init.stateFor(sensor).rotationDone
}

// TranslationConverged reports whether sensor n's translation has been
// solved. Always false until rotation has converged.
func (init *Initializer) TranslationConverged(sensor int) bool {
	if sensor == init.idxRef {
		return true
	}
	return init.stateFor(sensor).translationDone
}

// Extrinsic returns the current best estimate of sensor n's body<-sensor
// extrinsic. Before rotation convergence this is the identity pose.
func (init *Initializer) Extrinsic(sensor int) spatialmath.Pose {
	if sensor == init.idxRef {
		return spatialmath.Identity()
	}
	return init.stateFor(sensor).extrinsic
}

// AllConverged reports whether every non-reference sensor among
// numSensors has completed both rotation and translation bootstrap. A
// sensor never observed (no AddObservation call yet) counts as
// unconverged, so a rig that hasn't reported any motion for one of its
// sensors correctly reports false rather than vacuously true.
func (init *Initializer) AllConverged(numSensors int) bool {
	for sensor := 0; sensor < numSensors; sensor++ {
		if sensor == init.idxRef {
			continue
		}
		s, ok := init.sensors[sensor]
		if !ok || !s.rotationDone || !s.translationDone {
			return false
		}
	}
	return true
}

// SensorStatistics is a snapshot of one sensor's bootstrap progress,
// suitable for a collaborator to persist or log (spec.md §12.4).
type SensorStatistics struct {
	Sensor               int
	Frames               int
	RotationConverged    bool
	RotationSingularRatio float64
	TranslationConverged bool
	TranslationEigen     float64
	Extrinsic            spatialmath.Pose
}

// Statistics returns a snapshot for every sensor observed so far, ordered
// by sensor index.
func (init *Initializer) Statistics() []SensorStatistics {
	out := make([]SensorStatistics, 0, len(init.sensors))
	for sensor, s := range init.sensors {
		out = append(out, SensorStatistics{
			Sensor:                sensor,
			Frames:                s.frames,
			RotationConverged:     s.rotationDone,
			RotationSingularRatio: s.rotationRatio,
			TranslationConverged:  s.translationDone,
			TranslationEigen:      s.translEigen,
			Extrinsic:             s.extrinsic,
		})
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Sensor < out[i].Sensor {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}
