package localmap

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/mlo-robotics/mlo-estimator/pointcloud"
)

// fitPlane fits a plane through neighbors by SVD of the centered
// coordinate matrix: the normal is the right-singular vector of the
// smallest singular value, and the fit score is 1 minus the ratio of that
// singular value to the largest (1 == perfectly planar).
func fitPlane(query r3.Vector, neighbors []r3.Vector) (pointcloud.Feature, bool) {
	if len(neighbors) < 3 {
		return pointcloud.Feature{}, false
	}
	centroid, centered := centerPoints(neighbors)

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return pointcloud.Feature{}, false
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)
	r, _ := v.Dims()
	if r < 3 {
		return pointcloud.Feature{}, false
	}
	normal := r3.Vector{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)}.Normalize()
	d := -normal.Dot(centroid)

	score := planarity(values)
	if score < 0 {
		return pointcloud.Feature{}, false
	}
	return pointcloud.Feature{
		Kind:   pointcloud.Surface,
		Point:  query,
		Coeffs: [4]float64{normal.X, normal.Y, normal.Z, d},
		Score:  score,
	}, true
}

// fitLine fits a line through neighbors by SVD of the centered coordinate
// matrix: the direction is the right-singular vector of the largest
// singular value, and the fit score reflects how dominant that direction
// is over the others (1 == perfectly linear). The returned Feature's Point
// is the neighbors' centroid, a point on the fitted line.
func fitLine(query r3.Vector, neighbors []r3.Vector) (pointcloud.Feature, bool) {
	if len(neighbors) < 2 {
		return pointcloud.Feature{}, false
	}
	centroid, centered := centerPoints(neighbors)

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return pointcloud.Feature{}, false
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)
	r, _ := v.Dims()
	if r < 1 {
		return pointcloud.Feature{}, false
	}
	direction := r3.Vector{X: v.At(0, 0), Y: v.At(1, 0), Z: v.At(2, 0)}.Normalize()

	score := linearity(values)
	if score < 0 {
		return pointcloud.Feature{}, false
	}
	return pointcloud.Feature{
		Kind:   pointcloud.Edge,
		Point:  centroid,
		Coeffs: [4]float64{direction.X, direction.Y, direction.Z, 0},
		Score:  score,
	}, true
}

func centerPoints(points []r3.Vector) (r3.Vector, *mat.Dense) {
	var centroid r3.Vector
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(len(points)))

	m := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		c := p.Sub(centroid)
		m.SetRow(i, []float64{c.X, c.Y, c.Z})
	}
	return centroid, m
}

func planarity(singularValues []float64) float64 {
	if len(singularValues) < 3 || singularValues[0] < 1e-9 {
		return -1
	}
	return 1 - singularValues[2]/singularValues[0]
}

func linearity(singularValues []float64) float64 {
	if len(singularValues) < 2 || singularValues[0] < 1e-9 {
		return -1
	}
	return 1 - singularValues[1]/singularValues[0]
}
