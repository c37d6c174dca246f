package localmap

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/mlo-robotics/mlo-estimator/pointcloud"
)

func TestFitPlaneRecoversFlatSurface(t *testing.T) {
	neighbors := []r3.Vector{
		{X: 0, Y: 0, Z: 1},
		{X: 1, Y: 0, Z: 1},
		{X: 0, Y: 1, Z: 1},
		{X: 1, Y: 1, Z: 1},
		{X: 0.5, Y: 0.5, Z: 1},
	}
	f, ok := fitPlane(r3.Vector{X: 0.5, Y: 0.5, Z: 1}, neighbors)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, f.Kind, test.ShouldEqual, pointcloud.Surface)
	test.That(t, math.Abs(f.Normal().Z), test.ShouldBeGreaterThanOrEqualTo, 0.99)
	test.That(t, f.Score, test.ShouldBeGreaterThanOrEqualTo, 0.99)
}

func TestFitPlaneRejectsTooFewNeighbors(t *testing.T) {
	_, ok := fitPlane(r3.Vector{}, []r3.Vector{{X: 0}, {X: 1}})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestFitLineRecoversStraightSegment(t *testing.T) {
	neighbors := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 3, Y: 0, Z: 0},
	}
	f, ok := fitLine(r3.Vector{X: 1.5}, neighbors)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, f.Kind, test.ShouldEqual, pointcloud.Edge)
	test.That(t, math.Abs(f.Normal().X), test.ShouldBeGreaterThanOrEqualTo, 0.99)
}
