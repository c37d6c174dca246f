package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestDownsampleLeafMergesNearbyPoints(t *testing.T) {
	pts := []r3.Vector{
		{X: 0.01, Y: 0.01, Z: 0.01},
		{X: 0.02, Y: 0.0, Z: 0.0},
		{X: 5, Y: 5, Z: 5},
	}
	out := DownsampleLeaf(pts, 0.4)
	test.That(t, len(out), test.ShouldEqual, 2)
}

func TestDownsampleLeafZeroIsNoop(t *testing.T) {
	pts := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}
	out := DownsampleLeaf(pts, 0)
	test.That(t, out, test.ShouldResemble, pts)
}

func TestDownsampleLeafEmpty(t *testing.T) {
	out := DownsampleLeaf(nil, 0.4)
	test.That(t, len(out), test.ShouldEqual, 0)
}
