package window

import (
	"github.com/golang/geo/r3"

	"github.com/mlo-robotics/mlo-estimator/pointcloud"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// Window is the estimator's optimization window: Size()+1 synchronized
// slots (logical index 0 is the oldest frame, Size() is the newest), each
// carrying a pose, a timestamp and per-sensor surface/edge feature stacks.
// Slide() implements the ring-buffer slide described in spec.md §4.1: drop
// logical index 0, shift everything down by one, and duplicate the previous
// tail into the new one so the driver can overwrite it in place.
type Window struct {
	numSensors int

	pose  *ring[spatialmath.Pose]
	stamp *ring[float64]
	surf  []*ring[pointcloud.RawCloud]
	edge  []*ring[pointcloud.RawCloud]
}

// New builds a window holding size+1 slots (logical 0..size) for
// numSensors LiDARs.
func New(size, numSensors int) *Window {
	w := &Window{
		numSensors: numSensors,
		pose:       newRing[spatialmath.Pose](size + 1),
		stamp:      newRing[float64](size + 1),
		surf:       make([]*ring[pointcloud.RawCloud], numSensors),
		edge:       make([]*ring[pointcloud.RawCloud], numSensors),
	}
	for n := 0; n < numSensors; n++ {
		w.surf[n] = newRing[pointcloud.RawCloud](size + 1)
		w.edge[n] = newRing[pointcloud.RawCloud](size + 1)
	}
	return w
}

// Size returns the index of the newest slot (the window holds Size()+1
// slots in total, matching the original's WINDOW_SIZE convention).
func (w *Window) Size() int { return w.pose.cap() - 1 }

// NumSensors returns the number of LiDARs this window tracks features for.
func (w *Window) NumSensors() int { return w.numSensors }

// Pose returns the pose stored at logical index i.
func (w *Window) Pose(i int) spatialmath.Pose { return w.pose.at(i) }

// SetPose overwrites the pose at logical index i.
func (w *Window) SetPose(i int, p spatialmath.Pose) { w.pose.set(i, p) }

// Stamp returns the timestamp stored at logical index i.
func (w *Window) Stamp(i int) float64 { return w.stamp.at(i) }

// SetStamp overwrites the timestamp at logical index i.
func (w *Window) SetStamp(i int, t float64) { w.stamp.set(i, t) }

// Surf returns sensor n's surface feature stack at logical index i.
func (w *Window) Surf(n, i int) pointcloud.RawCloud { return w.surf[n].at(i) }

// SetSurf overwrites sensor n's surface feature stack at logical index i.
func (w *Window) SetSurf(n, i int, c pointcloud.RawCloud) { w.surf[n].set(i, c) }

// Edge returns sensor n's edge feature stack at logical index i.
func (w *Window) Edge(n, i int) pointcloud.RawCloud { return w.edge[n].at(i) }

// SetEdge overwrites sensor n's edge feature stack at logical index i.
func (w *Window) SetEdge(n, i int, c pointcloud.RawCloud) { w.edge[n].set(i, c) }

// Slide drops logical index 0 and shifts every sequence down by one,
// duplicating the previous tail (Size()-1 -> Size()) so the caller can then
// overwrite the new tail with a freshly accepted frame. Calling it twice in
// a row (once to make room, once because the window has just filled for the
// first time) is intentional: see the estimator driver's first-fill path.
func (w *Window) Slide() {
	tail := w.Size()
	w.pose.push(w.pose.at(tail))
	w.stamp.push(w.stamp.at(tail))
	for n := 0; n < w.numSensors; n++ {
		w.surf[n].push(w.surf[n].at(tail))
		w.edge[n].push(w.edge[n].at(tail))
	}
}

// Pivot is a copy of one window slot, normally the pivot slot P = W - O,
// as returned by SnapshotPivot; the estimator's Snapshot exposes it for
// inspection (spec.md §4 C4).
type Pivot struct {
	Pose  spatialmath.Pose
	Stamp float64
	Surf  []pointcloud.RawCloud
	Edge  []pointcloud.RawCloud
}

// SnapshotPivot copies logical index pivot out of the window (spec.md §3:
// the oldest slot inside the optimization window, P = W - O, not
// necessarily the window's absolute oldest slot 0 when O < W). The
// returned clouds are independent of the window's internal storage.
func (w *Window) SnapshotPivot(pivot int) Pivot {
	p := Pivot{
		Pose:  w.Pose(pivot),
		Stamp: w.Stamp(pivot),
		Surf:  make([]pointcloud.RawCloud, w.numSensors),
		Edge:  make([]pointcloud.RawCloud, w.numSensors),
	}
	for n := 0; n < w.numSensors; n++ {
		p.Surf[n] = w.Surf(n, pivot).Clone()
		p.Edge[n] = w.Edge(n, pivot).Clone()
	}
	return p
}

// TransformToPivot expresses every feature point in slot i in the pivot
// frame (logical index pivot), matching the original's repeated
// pose_pivot.inverse() * pose_i composition ahead of map insertion.
func (w *Window) TransformToPivot(pivot, n, i int, kind pointcloud.FeatureKind) []r3.Vector {
	rel := w.Pose(pivot).Inverse().Compose(w.Pose(i))
	var cloud pointcloud.RawCloud
	if kind == pointcloud.Surface {
		cloud = w.Surf(n, i)
	} else {
		cloud = w.Edge(n, i)
	}
	return pointcloud.Transform(cloud, rel)
}
