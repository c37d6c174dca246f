// Package localmap implements the estimator's local-map builder and
// matcher (spec.md §4.4-4.5, C4/C5): each optimization cycle it freezes the
// pivot-frame window history, rebuilds a downsampled per-sensor point map
// from scratch, and answers k-nearest-neighbor plane/edge queries against
// it.
package localmap

import (
	"github.com/golang/geo/r3"

	"github.com/mlo-robotics/mlo-estimator/pointcloud"
)

// SensorMap is one sensor's downsampled local map in the pivot frame,
// ready for nearest-neighbor queries.
type SensorMap struct {
	Sensor int
	Surf   []r3.Vector
	Edge   []r3.Vector

	surfIndex *index
	edgeIndex *index
}

func newSensorMap(sensor int, surf, edge []r3.Vector) *SensorMap {
	return &SensorMap{
		Sensor:    sensor,
		Surf:      surf,
		Edge:      edge,
		surfIndex: newIndex(surf),
		edgeIndex: newIndex(edge),
	}
}

// MatchSurf finds up to k nearest surface map points to query and fits a
// plane through them.
func (m *SensorMap) MatchSurf(query r3.Vector, k int) (pointcloud.Feature, bool) {
	neighbors := m.surfIndex.nearestK(query, k)
	return fitPlane(query, neighbors)
}

// MatchEdge finds up to k nearest edge map points to query and fits a line
// through them.
func (m *SensorMap) MatchEdge(query r3.Vector, k int) (pointcloud.Feature, bool) {
	neighbors := m.edgeIndex.nearestK(query, k)
	return fitLine(query, neighbors)
}
