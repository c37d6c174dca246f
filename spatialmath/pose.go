// Package spatialmath implements the rigid-transform algebra the estimator
// uses to represent body poses and sensor extrinsics: a quaternion/translation
// Pose type with compose, inverse, SE(3) log/exp, and weighted pose averaging.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Mat4 is a row-major 4x4 homogeneous transform matrix.
type Mat4 [16]float64

// Identity4 returns the identity homogeneous transform.
func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Pose is a rigid transform in SE(3): a unit quaternion, a translation, an
// optional scalar time offset, and a cached homogeneous matrix form. Poses
// are immutable; every operation returns a new Pose.
type Pose struct {
	q  quat.Number
	t  r3.Vector
	td float64
	m  Mat4
}

// NewPose builds a Pose from a quaternion and translation, normalizing q.
func NewPose(q quat.Number, t r3.Vector, td float64) Pose {
	q = normalize(q)
	return Pose{q: q, t: t, td: td, m: matrixFromQuatTrans(q, t)}
}

// Identity returns the identity pose.
func Identity() Pose {
	return NewPose(quat.Number{Real: 1}, r3.Vector{}, 0)
}

// NewPoseFromMatrix extracts a Pose from a homogeneous transform matrix.
func NewPoseFromMatrix(m Mat4, td float64) Pose {
	q := quatFromRotationMatrix(m)
	t := r3.Vector{X: m[3], Y: m[7], Z: m[11]}
	return NewPose(q, t, td)
}

// Quaternion returns the pose's unit-quaternion rotation.
func (p Pose) Quaternion() quat.Number { return p.q }

// Translation returns the pose's translation.
func (p Pose) Translation() r3.Vector { return p.t }

// TimeOffset returns the pose's scalar time offset (td).
func (p Pose) TimeOffset() float64 { return p.td }

// Matrix returns the cached homogeneous matrix form of the pose.
func (p Pose) Matrix() Mat4 { return p.m }

// Compose returns a*b: apply b then a (a.Compose(b) == a * b in spec.md notation).
// t12 = t_a + q_a * t_b; q12 = q_a * q_b, matching original Pose::poseTransform.
func (a Pose) Compose(b Pose) Pose {
	q := quat.Mul(a.q, b.q)
	t := addVec(rotate(a.q, b.t), a.t)
	return NewPose(q, t, a.td+b.td)
}

// Inverse returns the pose's inverse: q^-1, -(q^-1 * t).
func (p Pose) Inverse() Pose {
	qi := quat.Conj(p.q) // unit quaternion: conjugate == inverse
	ti := rotate(qi, p.t).Mul(-1)
	return NewPose(qi, ti, -p.td)
}

// TransformPoint applies the pose (rotate then translate) to a point given in
// the pose's local frame, returning the point in the parent frame.
func (p Pose) TransformPoint(v r3.Vector) r3.Vector {
	return addVec(rotate(p.q, v), p.t)
}

// AlmostEqual reports whether two poses are equal within tol on both
// translation and quaternion (up to sign, since q and -q represent the
// same rotation).
func AlmostEqual(a, b Pose, tol float64) bool {
	if a.t.Sub(b.t).Norm() > tol {
		return false
	}
	d1 := quatNorm(quatSub(a.q, b.q))
	d2 := quatNorm(quatSub(a.q, negQuat(b.q)))
	return math.Min(d1, d2) <= tol
}

func addVec(a, b r3.Vector) r3.Vector { return a.Add(b) }

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func normalize(q quat.Number) quat.Number {
	n := quatAbs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

func quatAbs(q quat.Number) float64 {
	return math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

func quatNorm(q quat.Number) float64 { return quatAbs(q) }

func quatSub(a, b quat.Number) quat.Number {
	return quat.Number{Real: a.Real - b.Real, Imag: a.Imag - b.Imag, Jmag: a.Jmag - b.Jmag, Kmag: a.Kmag - b.Kmag}
}

func negQuat(q quat.Number) quat.Number {
	return quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}

func matrixFromQuatTrans(q quat.Number, t r3.Vector) Mat4 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return Mat4{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w), t.X,
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w), t.Y,
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y), t.Z,
		0, 0, 0, 1,
	}
}

// quatFromRotationMatrix recovers a unit quaternion from the rotation block
// of a homogeneous matrix (Shepperd's method).
func quatFromRotationMatrix(m Mat4) quat.Number {
	r00, r01, r02 := m[0], m[1], m[2]
	r10, r11, r12 := m[4], m[5], m[6]
	r20, r21, r22 := m[8], m[9], m[10]
	tr := r00 + r11 + r22

	var w, x, y, z float64
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		w = 0.25 * s
		x = (r21 - r12) / s
		y = (r02 - r20) / s
		z = (r10 - r01) / s
	case r00 > r11 && r00 > r22:
		s := math.Sqrt(1+r00-r11-r22) * 2
		w = (r21 - r12) / s
		x = 0.25 * s
		y = (r01 + r10) / s
		z = (r02 + r20) / s
	case r11 > r22:
		s := math.Sqrt(1+r11-r00-r22) * 2
		w = (r02 - r20) / s
		x = (r01 + r10) / s
		y = 0.25 * s
		z = (r12 + r21) / s
	default:
		s := math.Sqrt(1+r22-r00-r11) * 2
		w = (r10 - r01) / s
		x = (r02 + r20) / s
		y = (r12 + r21) / s
		z = 0.25 * s
	}
	return normalize(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z})
}
