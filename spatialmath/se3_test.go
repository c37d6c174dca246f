package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestLogExpRoundTrip(t *testing.T) {
	cases := []Pose{
		Identity(),
		NewPose(quat.Number{Real: math.Cos(0.3), Imag: math.Sin(0.3)}, r3.Vector{X: 1, Y: -2, Z: 0.3}, 0),
		NewPose(quat.Number{Real: math.Cos(1.2), Jmag: math.Sin(1.2)}, r3.Vector{X: -4, Y: 2, Z: 9}, 0),
		NewPose(quat.Number{Real: math.Cos(1e-9), Kmag: math.Sin(1e-9)}, r3.Vector{X: 0.001, Y: 0, Z: 0}, 0),
	}
	for _, p := range cases {
		xi := Log(p)
		p2 := Exp(xi)
		test.That(t, AlmostEqual(p, p2, 1e-6), test.ShouldBeTrue)
	}
}

func TestExpLogRoundTripOnTwist(t *testing.T) {
	xi := Twist{0.1, -0.2, 0.05, 1, -1, 2}
	p := Exp(xi)
	xi2 := Log(p)
	for i := range xi {
		test.That(t, xi2[i], test.ShouldAlmostEqual, xi[i])
	}
}
