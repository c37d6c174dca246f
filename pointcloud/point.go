// Package pointcloud holds the estimator's point and feature cloud types and
// the voxel-grid downsampling filter the local-map builder (localmap) relies
// on. The heavier feature-extraction front end (raw scan -> plane/edge
// features) is an external collaborator (spec.md §1); this package only owns
// the data shapes and the downsampling primitive.
package pointcloud

import "github.com/golang/geo/r3"

// RawCloud is an unordered stack of points in a sensor's local frame, as
// produced by the external feature extractor. The sliding window stores
// each cloud as received, without downsampling; this package's voxel
// filter is applied only when the local map is built from the window.
type RawCloud []r3.Vector

// Size returns the number of points.
func (c RawCloud) Size() int { return len(c) }

// Clone returns an independent copy of the cloud.
func (c RawCloud) Clone() RawCloud {
	out := make(RawCloud, len(c))
	copy(out, c)
	return out
}

// FeatureKind distinguishes plane (surface) from line (edge) correspondences.
type FeatureKind int

// Feature kinds.
const (
	Surface FeatureKind = iota
	Edge
)

// Feature is a single plane-to-map or edge-to-map correspondence: a point in
// the local map's (pivot) frame (the query point for a Surface feature, a
// point on the fitted line for an Edge feature), the plane coefficients
// (n, d) or line coefficients (d, _) found against the local map, and a
// fit-quality score in [0, 1] (spec.md §3).
type Feature struct {
	Kind   FeatureKind
	Point  r3.Vector
	Coeffs [4]float64
	Score  float64
}

// PlaneResidual evaluates n.p + d for the feature's plane coefficients
// against a point already expressed in the map frame.
func (f Feature) PlaneResidual(p r3.Vector) float64 {
	return f.Coeffs[0]*p.X + f.Coeffs[1]*p.Y + f.Coeffs[2]*p.Z + f.Coeffs[3]
}

// Normal returns the unit plane normal (for Surface features) or line
// direction (for Edge features) encoded in Coeffs.
func (f Feature) Normal() r3.Vector {
	return r3.Vector{X: f.Coeffs[0], Y: f.Coeffs[1], Z: f.Coeffs[2]}
}
