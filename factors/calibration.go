package factors

import (
	"github.com/golang/geo/r3"

	"github.com/mlo-robotics/mlo-estimator/solver"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// TargetPlane is the calibration-mode factor from spec.md §4.5: a
// non-reference sensor's pivot-slot feature, constraining only ex_pose[n].
// The pose the point was observed at is treated as given (not a solver
// variable), matching "pose blocks treated as given" for this factor.
type TargetPlane struct {
	ExBlock     *solver.Block
	FixedPose   spatialmath.Pose
	Point       r3.Vector
	Normal      r3.Vector
	D           float64
	Weight      float64
}

func (f *TargetPlane) Blocks() []*solver.Block { return []*solver.Block{f.ExBlock} }
func (f *TargetPlane) Dim() int                { return 1 }

func (f *TargetPlane) Evaluate(values [][]float64) ([]float64, error) {
	ex := solver.PoseFromVector(values[0])
	p := f.FixedPose.Compose(ex).TransformPoint(f.Point)
	weight := f.Weight
	if weight == 0 {
		weight = 1
	}
	return []float64{weight * (f.Normal.Dot(p) + f.D)}, nil
}

// Accumulator batches non-reference pivot-slot features across cycles,
// flushing a slice of target-plane factors every N cycles and clearing
// the buffer, matching the original's N_CUMU_FEATURE cumulative wiring.
type Accumulator struct {
	every   int
	cycle   int
	pending []TargetPlane
}

// NewAccumulator creates an accumulator that flushes every `every` cycles.
func NewAccumulator(every int) *Accumulator {
	if every < 1 {
		every = 1
	}
	return &Accumulator{every: every}
}

// Add queues a target-plane observation for the current cycle.
func (a *Accumulator) Add(f TargetPlane) {
	a.pending = append(a.pending, f)
}

// Tick advances the cycle counter and, once `every` cycles have elapsed,
// returns and clears the accumulated factors. It returns nil on cycles
// that don't flush.
func (a *Accumulator) Tick() []TargetPlane {
	a.cycle++
	if a.cycle < a.every {
		return nil
	}
	a.cycle = 0
	flushed := a.pending
	a.pending = nil
	return flushed
}
