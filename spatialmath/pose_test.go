package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestComposeInverse(t *testing.T) {
	a := NewPose(quat.Number{Real: math.Cos(0.3), Imag: math.Sin(0.3)}, r3.Vector{X: 1, Y: 2, Z: 3}, 0)
	b := NewPose(quat.Number{Real: math.Cos(0.1), Jmag: math.Sin(0.1)}, r3.Vector{X: -1, Y: 0, Z: 4}, 0)

	lhs := a.Compose(b).Inverse()
	rhs := b.Inverse().Compose(a.Inverse())
	test.That(t, AlmostEqual(lhs, rhs, 1e-9), test.ShouldBeTrue)
}

func TestMatrixRoundTrip(t *testing.T) {
	p := NewPose(quat.Number{Real: math.Cos(0.4), Imag: math.Sin(0.4) * 0.6, Jmag: math.Sin(0.4) * 0.8}, r3.Vector{X: 5, Y: -2, Z: 0.5}, 0)
	p2 := NewPoseFromMatrix(p.Matrix(), 0)
	test.That(t, AlmostEqual(p, p2, 1e-9), test.ShouldBeTrue)
}

func TestTransformPointConsistentWithMatrix(t *testing.T) {
	p := NewPose(quat.Number{Real: math.Cos(0.2), Kmag: math.Sin(0.2)}, r3.Vector{X: 1, Y: 1, Z: 1}, 0)
	v := r3.Vector{X: 2, Y: -3, Z: 0.5}

	got := p.TransformPoint(v)
	m := p.Matrix()
	want := r3.Vector{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z + m[3],
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z + m[7],
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z + m[11],
	}
	test.That(t, got.Sub(want).Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestIdentityIsNeutral(t *testing.T) {
	p := NewPose(quat.Number{Real: math.Cos(0.5), Imag: math.Sin(0.5)}, r3.Vector{X: 3, Y: 1, Z: -1}, 0)
	test.That(t, AlmostEqual(Identity().Compose(p), p, 1e-9), test.ShouldBeTrue)
	test.That(t, AlmostEqual(p.Compose(Identity()), p, 1e-9), test.ShouldBeTrue)
	test.That(t, AlmostEqual(p.Compose(p.Inverse()), Identity(), 1e-9), test.ShouldBeTrue)
}
