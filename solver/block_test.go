package solver

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

func TestPoseBlockRoundTrip(t *testing.T) {
	p := spatialmath.NewPose(quat.Number{Real: math.Cos(0.3), Imag: math.Sin(0.3)}, r3.Vector{X: 1, Y: -2, Z: 0.5}, 0)
	v := VectorFromPose(p)
	got := PoseFromVector(v)
	test.That(t, spatialmath.AlmostEqual(got, p, 1e-9), test.ShouldBeTrue)
}

func TestPoseParamPlusZeroDeltaIsIdentity(t *testing.T) {
	p := spatialmath.NewPose(quat.Number{Real: math.Cos(0.1), Jmag: math.Sin(0.1)}, r3.Vector{X: 2}, 0)
	v := VectorFromPose(p)
	out := PoseParam{}.Plus(v, make([]float64, 6))
	got := PoseFromVector(out)
	test.That(t, spatialmath.AlmostEqual(got, p, 1e-9), test.ShouldBeTrue)
}

func TestScalarParamPlus(t *testing.T) {
	out := ScalarParam{}.Plus([]float64{1.5}, []float64{0.25})
	test.That(t, out[0], test.ShouldEqual, 1.75)
}
