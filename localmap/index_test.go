package localmap

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNearestKOrdersByDistance(t *testing.T) {
	idx := newIndex([]r3.Vector{
		{X: 10},
		{X: 1},
		{X: 2},
		{X: -5},
	})
	out := idx.nearestK(r3.Vector{}, 2)
	test.That(t, len(out), test.ShouldEqual, 2)
	test.That(t, out[0].X, test.ShouldEqual, 1.0)
	test.That(t, out[1].X, test.ShouldEqual, 2.0)
}

func TestNearestKClampsToAvailablePoints(t *testing.T) {
	idx := newIndex([]r3.Vector{{X: 1}})
	out := idx.nearestK(r3.Vector{}, 5)
	test.That(t, len(out), test.ShouldEqual, 1)
}

func TestNearestKOnEmptyIndex(t *testing.T) {
	idx := newIndex(nil)
	out := idx.nearestK(r3.Vector{}, 3)
	test.That(t, len(out), test.ShouldEqual, 0)
}
