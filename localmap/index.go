package localmap

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// index wraps a KD-tree over a fixed point set for repeated k-nearest
// queries. spec.md treats the KD-tree nearest-neighbor index as an
// external collaborator; this type is the core's concrete binding to
// gonum's implementation of that contract.
type index struct {
	points kdtree.Points
}

func newIndex(points []r3.Vector) *index {
	pts := make(kdtree.Points, len(points))
	for i, p := range points {
		pts[i] = kdtree.Point{p.X, p.Y, p.Z}
	}
	return &index{points: pts}
}

func (idx *index) empty() bool { return len(idx.points) == 0 }

// nearestK returns up to k nearest neighbors of query, closest first. It
// rebuilds the tree on a shrinking copy of the point set on each of the k
// iterations; acceptable at the window's per-cycle map sizes, where k is a
// small constant (5 or 10) and the caller runs this once per query point.
func (idx *index) nearestK(query r3.Vector, k int) []r3.Vector {
	if idx.empty() || k <= 0 {
		return nil
	}
	remaining := make(kdtree.Points, len(idx.points))
	copy(remaining, idx.points)

	out := make([]r3.Vector, 0, k)
	target := kdtree.Point{query.X, query.Y, query.Z}
	for i := 0; i < k && len(remaining) > 0; i++ {
		tree := kdtree.New(remaining, true)
		found, _ := tree.Nearest(target)
		np, ok := found.(kdtree.Point)
		if !ok {
			break
		}
		out = append(out, r3.Vector{X: np[0], Y: np[1], Z: np[2]})

		match := -1
		for j, p := range remaining {
			if p[0] == np[0] && p[1] == np[1] && p[2] == np[2] {
				match = j
				break
			}
		}
		if match < 0 {
			break
		}
		remaining = append(remaining[:match], remaining[match+1:]...)
	}
	return out
}
