package factors

import (
	"github.com/mlo-robotics/mlo-estimator/solver"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// ExtrinsicPrior anchors a non-reference sensor's extrinsic against drift
// during online calibration with a Gaussian prior on (t_bl, q_bl),
// matching spec.md §4.5's "extrinsic prior" factor.
type ExtrinsicPrior struct {
	ExBlock       *solver.Block
	Prior         spatialmath.Pose
	PositionInfo  float64
	RotationInfo  float64
}

func (f *ExtrinsicPrior) Blocks() []*solver.Block { return []*solver.Block{f.ExBlock} }

// Dim is 6: three position residuals plus a three-component rotation
// log-map residual.
func (f *ExtrinsicPrior) Dim() int { return 6 }

func (f *ExtrinsicPrior) Evaluate(values [][]float64) ([]float64, error) {
	current := solver.PoseFromVector(values[0])
	dt := current.Translation().Sub(f.Prior.Translation())
	rel := f.Prior.Inverse().Compose(current)
	twist := spatialmath.Log(rel)

	posInfo := f.PositionInfo
	if posInfo == 0 {
		posInfo = 1
	}
	rotInfo := f.RotationInfo
	if rotInfo == 0 {
		rotInfo = 1
	}
	return []float64{
		posInfo * dt.X, posInfo * dt.Y, posInfo * dt.Z,
		rotInfo * twist[0], rotInfo * twist[1], rotInfo * twist[2],
	}, nil
}
