package localmap

import (
	"github.com/golang/geo/r3"

	"github.com/mlo-robotics/mlo-estimator/pointcloud"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
	"github.com/mlo-robotics/mlo-estimator/window"
)

// Mode selects between plain odometry mapping and the extrinsic
// calibration mapping variant, which seeds non-reference maps from the
// reference sensor's map instead of the sensor's own points.
type Mode int

const (
	// Odometry builds each sensor's map uniformly from its own points.
	Odometry Mode = iota
	// Calibrating additionally seeds non-reference maps from the
	// reference sensor's downsampled map (spec.md §4.4).
	Calibrating
)

// LeafSizes controls the voxel-grid downsampling applied before indexing,
// matching the original's 0.4 (reference) / 0.3 (non-reference, only in
// calibration mode) leaf sizes.
type LeafSizes struct {
	Reference    float64
	NonReference float64
}

// DefaultLeafSizes matches the original hard-coded values.
func DefaultLeafSizes() LeafSizes { return LeafSizes{Reference: 0.4, NonReference: 0.3} }

// NeighborCounts controls the k used for nearest-neighbor matching,
// matching the original's 5 (reference) / 10 (non-reference) values.
type NeighborCounts struct {
	Reference    int
	NonReference int
}

// DefaultNeighborCounts matches the original hard-coded values.
func DefaultNeighborCounts() NeighborCounts { return NeighborCounts{Reference: 5, NonReference: 10} }

// Builder rebuilds per-sensor local maps from the current window state
// every cycle; per spec.md §4.4 the map holds no incremental cache.
type Builder struct {
	numSensors int
	idxRef     int
	pivot      int
	leaves     LeafSizes
	neighbors  NeighborCounts
}

// New creates a builder for a rig of numSensors LiDARs whose reference
// sensor is idxRef. pivot is P = W - O (spec.md §3): the window slot the
// local map is expressed relative to, and the boundary between frozen
// history ([0, pivot)) and live optimization slots ([pivot, W]).
func New(numSensors, idxRef, pivot int, leaves LeafSizes, neighbors NeighborCounts) *Builder {
	return &Builder{numSensors: numSensors, idxRef: idxRef, pivot: pivot, leaves: leaves, neighbors: neighbors}
}

// Rebuild gathers the surface and edge clouds of the live window slots
// [pivot, W) (see gatherSensor), transforms them into the pivot frame
// through the supplied extrinsics, downsamples, and indexes the result per
// sensor. The reference map, and every map in Odometry mode, uses the
// Reference leaf size. In Calibrating mode the non-reference sensors' maps
// are seeded from the reference sensor's gathered points, downsampled at
// the NonReference leaf size.
func (b *Builder) Rebuild(win *window.Window, extrinsics []spatialmath.Pose, mode Mode) map[int]*SensorMap {
	out := make(map[int]*SensorMap, b.numSensors)

	refSurfRaw, refEdgeRaw := b.gatherSensor(win, extrinsics, b.idxRef)
	refSurf := pointcloud.DownsampleLeaf(refSurfRaw, b.leaves.Reference)
	refEdge := pointcloud.DownsampleLeaf(refEdgeRaw, b.leaves.Reference)
	out[b.idxRef] = newSensorMap(b.idxRef, refSurf, refEdge)

	for n := 0; n < b.numSensors; n++ {
		if n == b.idxRef {
			continue
		}
		if mode == Calibrating {
			out[n] = newSensorMap(n,
				pointcloud.DownsampleLeaf(refSurfRaw, b.leaves.NonReference),
				pointcloud.DownsampleLeaf(refEdgeRaw, b.leaves.NonReference))
			continue
		}
		surf, edge := b.gatherSensor(win, extrinsics, n)
		surf = pointcloud.DownsampleLeaf(surf, b.leaves.Reference)
		edge = pointcloud.DownsampleLeaf(edge, b.leaves.Reference)
		out[n] = newSensorMap(n, surf, edge)
	}
	return out
}

// gatherSensor unions sensor n's feature clouds from every live window
// slot, each expressed in the pivot frame via
// pose[pivot]^-1 * pose[i] * extrinsic[n]. The range is [pivot, W):
// slots below pivot are frozen history already folded into slot pivot by
// FreezeHistory, and the live newest slot W is excluded since it has no
// local map of its own yet to be matched against (spec.md §4.4 step 2,
// "excluding the live newest W"; original's
// "if ((i < pivot_idx) || (i == WINDOW_SIZE)) continue;").
func (b *Builder) gatherSensor(win *window.Window, extrinsics []spatialmath.Pose, sensor int) (surf, edge []r3.Vector) {
	pivotInv := win.Pose(b.pivot).Inverse()
	ex := extrinsics[sensor]
	for i := b.pivot; i < win.Size(); i++ {
		rel := pivotInv.Compose(win.Pose(i)).Compose(ex)
		surf = append(surf, pointcloud.Transform(win.Surf(sensor, i), rel)...)
		edge = append(edge, pointcloud.Transform(win.Edge(sensor, i), rel)...)
	}
	return surf, edge
}

// FreezeHistory collapses window slots [0, pivot] into a single snapshot
// stored at slot pivot (spec.md §4.4 step 1), so gatherSensor's per-cycle
// loop never needs to touch frozen history slot-by-slot again. Callers
// gate this behind a persisted flag (matching the original's
// ini_fixed_local_map_): call it once after the window first fills, and
// again whenever the extrinsics it used are invalidated (an
// ESTIMATE_EXTRINSIC 1->0 transition). In Calibrating mode only the
// reference sensor freezes, matching buildCalibMap: every other sensor's
// local map is seeded from the reference map (Rebuild), not its own
// history, so freezing its history would be wasted work.
func (b *Builder) FreezeHistory(win *window.Window, extrinsics []spatialmath.Pose, mode Mode) {
	freeze := func(sensor int) {
		pivotInv := win.Pose(b.pivot).Inverse()
		ex := extrinsics[sensor]
		var surf, edge pointcloud.RawCloud
		for i := 0; i <= b.pivot; i++ {
			rel := pivotInv.Compose(win.Pose(i)).Compose(ex)
			surf = append(surf, pointcloud.Transform(win.Surf(sensor, i), rel)...)
			edge = append(edge, pointcloud.Transform(win.Edge(sensor, i), rel)...)
		}
		win.SetSurf(sensor, b.pivot, surf)
		win.SetEdge(sensor, b.pivot, edge)
	}
	if mode == Calibrating {
		freeze(b.idxRef)
		return
	}
	for n := 0; n < b.numSensors; n++ {
		freeze(n)
	}
}

// Matched pairs one matcher result with the sensor it came from and the
// point as originally observed in that sensor's local frame (before the
// pose[slot] * ex_pose[sensor] transform used to query the map), so a
// collaborator can build a residual factor tying those two blocks to the
// map coefficients.
type Matched struct {
	Sensor  int
	Local   r3.Vector
	Feature pointcloud.Feature
}

// Match runs the per-slot nearest-neighbor search described in spec.md
// §4.5: for optimization slot i, for sensor n, find k nearest map points
// (k depends on whether n is the reference sensor) and fit a plane or
// line through them. In Calibrating mode only the reference sensor
// contributes via slot indices; non-reference sensors contribute once,
// from the pivot, matching the original's cumulative-feature wiring for
// the calibration factor. Slots below the pivot are frozen history with
// no solver block and are never matched, matching the original's
// "for (i = pivot_idx; i < WINDOW_SIZE + 1; i++)" correspondence loop.
func (b *Builder) Match(win *window.Window, maps map[int]*SensorMap, extrinsics []spatialmath.Pose, mode Mode) [][]Matched {
	out := make([][]Matched, win.Size()+1)
	for i := b.pivot; i <= win.Size(); i++ {
		out[i] = b.matchSlot(win, maps, extrinsics, i, mode)
	}
	return out
}

func (b *Builder) matchSlot(win *window.Window, maps map[int]*SensorMap, extrinsics []spatialmath.Pose, slot int, mode Mode) []Matched {
	var matches []Matched
	pivotInv := win.Pose(b.pivot).Inverse()

	for n := 0; n < b.numSensors; n++ {
		if mode == Calibrating && n != b.idxRef && slot != b.pivot {
			continue
		}
		m, ok := maps[n]
		if !ok {
			continue
		}
		k := b.neighbors.NonReference
		if n == b.idxRef {
			k = b.neighbors.Reference
		}
		rel := pivotInv.Compose(win.Pose(slot)).Compose(extrinsics[n])

		for _, p := range win.Surf(n, slot) {
			q := rel.TransformPoint(p)
			if f, ok := m.MatchSurf(q, k); ok {
				matches = append(matches, Matched{Sensor: n, Local: p, Feature: f})
			}
		}
		for _, p := range win.Edge(n, slot) {
			q := rel.TransformPoint(p)
			if f, ok := m.MatchEdge(q, k); ok {
				matches = append(matches, Matched{Sensor: n, Local: p, Feature: f})
			}
		}
	}
	return matches
}
