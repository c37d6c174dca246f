package spatialmath

import (
	"gonum.org/v1/gonum/mat"
)

// WeightedPose pairs a weight with a Pose for WeightedMean.
type WeightedPose struct {
	Weight float64
	Pose   Pose
}

// WeightedMean computes the weighted se(3) mean of a set of poses and its
// 6x6 sample covariance, following the original estimator's computeMeanPose:
// xi_bar = sum(w_k * xi_k) / sum(w_k), P_bar = exp(xi_bar),
// cov = sum(w_k^2 * (xi_k - xi_bar)(xi_k - xi_bar)^T) / (K-1).
//
// Defined only for K >= 1. For K == 1 the sole input is returned with zero
// covariance (matching the original's early-return special case).
func WeightedMean(poses []WeightedPose) (Pose, *mat.SymDense) {
	if len(poses) == 1 {
		return poses[0].Pose, mat.NewSymDense(6, nil)
	}

	var weightTotal float64
	xiTotal := Twist{}
	xis := make([]Twist, len(poses))
	for i, wp := range poses {
		xi := Log(wp.Pose)
		xis[i] = xi
		weightTotal += wp.Weight
		for j := 0; j < 6; j++ {
			xiTotal[j] += wp.Weight * xi[j]
		}
	}
	xiMean := Twist{}
	for j := 0; j < 6; j++ {
		xiMean[j] = xiTotal[j] / weightTotal
	}
	mean := Exp(xiMean)

	cov := mat.NewSymDense(6, nil)
	for i, wp := range poses {
		d := make([]float64, 6)
		for j := 0; j < 6; j++ {
			d[j] = xis[i][j] - xiMean[j]
		}
		w2 := wp.Weight * wp.Weight
		for r := 0; r < 6; r++ {
			for c := r; c < 6; c++ {
				cov.SetSym(r, c, cov.At(r, c)+w2*d[r]*d[c])
			}
		}
	}
	n := float64(len(poses) - 1)
	for r := 0; r < 6; r++ {
		for c := r; c < 6; c++ {
			cov.SetSym(r, c, cov.At(r, c)/n)
		}
	}
	return mean, cov
}
