package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Twist is the SE(3) tangent-space 6-vector in rotation-first ordering:
// [omega_x, omega_y, omega_z, rho_x, rho_y, rho_z].
type Twist [6]float64

const se3Epsilon = 1e-8

// Log maps a Pose onto its SE(3) tangent-space twist. log(exp(xi)) == xi up
// to the branch cut at theta == pi (the quaternion double cover is resolved
// by always taking the representative with non-negative scalar part).
func Log(p Pose) Twist {
	omega, theta := quatLog(p.q)
	var rho r3.Vector
	if theta < se3Epsilon {
		rho = p.t.Sub(omega.Cross(p.t).Mul(0.5))
	} else {
		half := theta / 2
		coef := (1 - theta*math.Cos(half)/(2*math.Sin(half))) / (theta * theta)
		rho = p.t.
			Sub(omega.Cross(p.t).Mul(0.5)).
			Add(omega.Cross(omega.Cross(p.t)).Mul(coef))
	}
	return Twist{omega.X, omega.Y, omega.Z, rho.X, rho.Y, rho.Z}
}

// Exp maps an SE(3) tangent-space twist back onto a Pose.
func Exp(xi Twist) Pose {
	omega := r3.Vector{X: xi[0], Y: xi[1], Z: xi[2]}
	rho := r3.Vector{X: xi[3], Y: xi[4], Z: xi[5]}
	theta := omega.Norm()

	q := quatExp(omega, theta)

	var t r3.Vector
	if theta < se3Epsilon {
		t = rho.Add(omega.Cross(rho).Mul(0.5))
	} else {
		a := (1 - math.Cos(theta)) / (theta * theta)
		b := (theta - math.Sin(theta)) / (theta * theta * theta)
		t = rho.
			Add(omega.Cross(rho).Mul(a)).
			Add(omega.Cross(omega.Cross(rho)).Mul(b))
	}
	return NewPose(q, t, 0)
}

// quatLog returns the axis-scaled rotation vector (omega, with |omega| == theta)
// for a unit quaternion.
func quatLog(q quat.Number) (r3.Vector, float64) {
	if q.Real < 0 {
		q = negQuat(q)
	}
	vecNorm := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	theta := 2 * math.Atan2(vecNorm, q.Real)
	if vecNorm < se3Epsilon {
		// small-angle: theta/vecNorm -> 2
		return r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}.Mul(2), theta
	}
	scale := theta / vecNorm
	return r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}.Mul(scale), theta
}

// quatExp builds the unit quaternion exp(omega/2) for a rotation vector whose
// norm is theta.
func quatExp(omega r3.Vector, theta float64) quat.Number {
	if theta < se3Epsilon {
		return normalize(quat.Number{Real: 1, Imag: omega.X / 2, Jmag: omega.Y / 2, Kmag: omega.Z / 2})
	}
	half := theta / 2
	s := math.Sin(half) / theta
	return quat.Number{Real: math.Cos(half), Imag: omega.X * s, Jmag: omega.Y * s, Kmag: omega.Z * s}
}
