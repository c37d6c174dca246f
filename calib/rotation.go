package calib

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// leftMatrix returns the 4x4 matrix L such that L*vec(p) == vec(q*p) for
// quaternions stored as (w, x, y, z).
func leftMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(4, 4, []float64{
		w, -x, -y, -z,
		x, w, -z, y,
		y, z, w, -x,
		z, -y, x, w,
	})
}

// rightMatrix returns the 4x4 matrix R such that R*vec(p) == vec(p*q).
func rightMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(4, 4, []float64{
		w, -x, -y, -z,
		x, w, z, -y,
		y, -z, w, x,
		z, y, -x, w,
	})
}

// rotationAccumulator accumulates the hand-eye rotation constraint
// q_other * q_ex == q_ex * q_ref across observation pairs into a running
// 4x4 Gramian, following the original InitialExtrinsics::calibRotation
// (accumulate Aq, solve min‖Aq q_ex‖ by SVD).
type rotationAccumulator struct {
	gram  *mat.Dense
	count int
}

func newRotationAccumulator() *rotationAccumulator {
	return &rotationAccumulator{gram: mat.NewDense(4, 4, nil)}
}

func (r *rotationAccumulator) add(qRef, qOther quat.Number) {
	var a mat.Dense
	a.Sub(leftMatrix(qOther), rightMatrix(qRef))
	var ata mat.Dense
	ata.Mul(a.T(), &a)
	r.gram.Add(r.gram, &ata)
	r.count++
}

// rotationResult is the outcome of one SVD solve of the accumulated
// constraint matrix.
type rotationResult struct {
	q         quat.Number
	converged bool
	// singularRatio is the second-smallest-to-smallest singular value
	// ratio of the accumulated Gramian; callers use this to report
	// calibration quality (spec.md §4.3 covariance criterion).
	singularRatio float64
}

// solve extracts the unit quaternion minimizing ‖Aq q_ex‖ as the
// right-singular-vector of the accumulated Gramian's smallest singular
// value, and reports convergence once the two smallest singular values
// separate by at least minSeparation.
func (r *rotationAccumulator) solve(minSeparation float64) rotationResult {
	var svd mat.SVD
	if !svd.Factorize(r.gram, mat.SVDFull) {
		return rotationResult{}
	}
	values := svd.Values(nil)
	var vMat mat.Dense
	svd.VTo(&vMat)

	vec := mat.Col(nil, 3, &vMat)
	q := quat.Number{Real: vec[0], Imag: vec[1], Jmag: vec[2], Kmag: vec[3]}
	if q.Real < 0 {
		q = quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
	}

	smallest := values[3]
	secondSmallest := values[2]
	ratio := 0.0
	if smallest > 1e-12 {
		ratio = secondSmallest / smallest
	} else if secondSmallest > 1e-12 {
		ratio = secondSmallest / 1e-12
	}
	return rotationResult{
		q:             normalizeQuat(q),
		converged:     r.count >= 3 && ratio >= minSeparation,
		singularRatio: ratio,
	}
}

func normalizeQuat(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n < 1e-12 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
