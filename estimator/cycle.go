package estimator

import (
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// processOne runs one full estimator cycle for a dequeued frame: track each
// sensor's own motion, advance the window, and (once the window is full or
// bootstrap calibration is underway) refine the result (spec.md §4.2). The
// caller must hold mProcess.
func (e *Estimator) processOne(f frame) {
	if !e.systemInited {
		e.seedFirstFrame(f)
		return
	}

	poseRelative := e.runTrackers(f)
	bodyDelta := poseRelative[e.cfg.IdxRef]

	if e.calibState.Mode == ExtrinsicBootstrap {
		e.runBootstrap(poseRelative)
	}

	newPose := e.win.Pose(e.win.Size()).Compose(bodyDelta)
	e.win.Slide()
	tail := e.win.Size()
	e.win.SetPose(tail, newPose)
	e.win.SetStamp(tail, f.stamp)
	for n := 0; n < e.cfg.NumSensors; n++ {
		e.win.SetSurf(n, tail, f.surf[n])
		e.win.SetEdge(n, tail, f.edge[n])
	}

	e.cnt++
	if e.solverFlag == Initial && e.cnt >= e.cfg.WindowSize && e.calibState.Mode != ExtrinsicBootstrap {
		// The window is full for the first time outside bootstrap (it has
		// just filled, or bootstrap has just converged after it filled, with
		// cnt already past W); sliding once more
		// normalizes the spacing between the duplicated tail and the
		// incoming frames (window.Slide's documented double-slide-on-first-
		// fill behavior).
		e.win.Slide()
		e.solverFlag = NonLinear
	}

	if e.solverFlag == NonLinear {
		e.optimizeMap()
	}
	if e.calibState.Mode == ExtrinsicOnline {
		e.evalCalib()
	}

	e.prevSurf = f.surf
	e.prevEdge = f.edge
}

// seedFirstFrame stores the very first accepted frame directly into the
// window's tail without tracking (there is no previous scan to track
// against yet), matching the original's special-cased first-frame handling.
func (e *Estimator) seedFirstFrame(f frame) {
	tail := e.win.Size()
	e.win.SetStamp(tail, f.stamp)
	for n := 0; n < e.cfg.NumSensors; n++ {
		e.win.SetSurf(n, tail, f.surf[n])
		e.win.SetEdge(n, tail, f.edge[n])
	}
	e.prevSurf = f.surf
	e.prevEdge = f.edge
	e.systemInited = true
}

// runTrackers runs every sensor's Tracker against the previous and current
// accepted feature clouds, returning each sensor's own relative motion in
// its local frame.
func (e *Estimator) runTrackers(f frame) []spatialmath.Pose {
	relative := make([]spatialmath.Pose, e.cfg.NumSensors)
	for n := 0; n < e.cfg.NumSensors; n++ {
		rel, err := e.trackers[n].Track(n, e.prevSurf[n], f.surf[n])
		if err != nil {
			e.log.Warnw("estimator: tracker failed, assuming no motion", "sensor", n, "err", err)
			rel = spatialmath.Identity()
		}
		relative[n] = rel
		e.poseRelative[n] = rel
		e.poseLaserCur[n] = e.poseLaserCur[n].Compose(rel)
	}
	return relative
}

// runBootstrap feeds this cycle's per-sensor relative motions into the
// extrinsic initializer (C3) and, once every non-reference sensor has
// converged, promotes the rig from Bootstrap to Online calibration.
func (e *Estimator) runBootstrap(poseRelative []spatialmath.Pose) {
	ref := poseRelative[e.cfg.IdxRef]
	for n := 0; n < e.cfg.NumSensors; n++ {
		if n == e.cfg.IdxRef {
			continue
		}
		e.initializer.AddObservation(n, ref, poseRelative[n])
	}
	if !e.initializer.AllConverged(e.cfg.NumSensors) {
		return
	}
	for n := 0; n < e.cfg.NumSensors; n++ {
		if n == e.cfg.IdxRef {
			continue
		}
		e.calibState.Extrinsics[n] = e.initializer.Extrinsic(n)
	}
	copy(e.priorAnchor, e.calibState.Extrinsics)
	e.calibState.Mode = ExtrinsicOnline
	e.log.Infow("estimator: extrinsic bootstrap converged, switching to online calibration")
}
