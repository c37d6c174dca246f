package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestWeightedMeanSingleton(t *testing.T) {
	p := NewPose(quat.Number{Real: math.Cos(0.2), Imag: math.Sin(0.2)}, r3.Vector{X: 1, Y: 2, Z: 3}, 0)
	mean, cov := WeightedMean([]WeightedPose{{Weight: 1, Pose: p}})
	test.That(t, AlmostEqual(mean, p, 1e-12), test.ShouldBeTrue)
	for i := 0; i < 6; i++ {
		test.That(t, cov.At(i, i), test.ShouldEqual, 0)
	}
}

func TestWeightedMeanEqualPosesReturnsSame(t *testing.T) {
	p := NewPose(quat.Number{Real: math.Cos(0.4), Jmag: math.Sin(0.4)}, r3.Vector{X: -1, Y: 2, Z: 0}, 0)
	mean, _ := WeightedMean([]WeightedPose{{Weight: 1, Pose: p}, {Weight: 1, Pose: p}})
	test.That(t, AlmostEqual(mean, p, 1e-9), test.ShouldBeTrue)
}
