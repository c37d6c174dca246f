package estimator

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/mlo-robotics/mlo-estimator/calib"
	"github.com/mlo-robotics/mlo-estimator/localmap"
	"github.com/mlo-robotics/mlo-estimator/solver"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

// ExtrinsicMode is the calibration lifecycle stage for the rig's
// non-reference extrinsics (spec.md §4.2, §6 ESTIMATE_EXTRINSIC).
type ExtrinsicMode int

const (
	// ExtrinsicFrozen holds every extrinsic block constant; only the
	// trajectory is refined.
	ExtrinsicFrozen ExtrinsicMode = 0
	// ExtrinsicOnline includes extrinsic blocks in the nonlinear solve.
	ExtrinsicOnline ExtrinsicMode = 1
	// ExtrinsicBootstrap runs the hand-eye initializer (C3) instead of
	// the nonlinear solver.
	ExtrinsicBootstrap ExtrinsicMode = 2
)

// SolverFlag is the driver's top-level state (spec.md §4.2).
type SolverFlag int

const (
	// Initial: the window is still filling, or bootstrap calibration has
	// not yet converged.
	Initial SolverFlag = iota
	// NonLinear: the window is full and the nonlinear solver runs every
	// cycle.
	NonLinear
)

func (f SolverFlag) String() string {
	if f == NonLinear {
		return "NON_LINEAR"
	}
	return "INITIAL"
}

// Config is the estimator's process-wide configuration, frozen at
// construction time (spec.md §6's configuration table; Design Notes §9's
// split between an immutable EstimatorConfig and a mutable
// RuntimeCalibState, the latter held by CalibState).
type Config struct {
	// NumSensors is N, the sensor count. ChangeSensorType aside, this is
	// fixed for the estimator's lifetime (spec.md Non-goals: no hot
	// sensor-count reconfig).
	NumSensors int
	// IdxRef is the reference sensor; its extrinsic block is held fixed.
	IdxRef int
	// WindowSize is W.
	WindowSize int
	// OptWindowSize is O; the pivot slot is P = WindowSize - OptWindowSize.
	OptWindowSize int

	// InitialExtrinsicMode seeds CalibState.Mode.
	InitialExtrinsicMode ExtrinsicMode
	// MultipleThread selects worker-goroutine mode over synchronous
	// inline driving of InputCloud.
	MultipleThread bool

	// Solver controls the Levenberg-Marquardt loop's tolerances and
	// iteration cap (NUM_ITERATIONS).
	Solver solver.Options
	// SolverTimeBudget carries the SOLVER_TIME setting. The
	// Levenberg-Marquardt loop does not read it: a solve is bounded only
	// by Solver.MaxIterations, not by wall-clock time.
	SolverTimeBudget time.Duration

	// Factor kill-switches.
	PriorFactor            bool
	PointPlaneFactor       bool
	PointEdgeFactor        bool
	MarginalizationFactor  bool

	// PriorFactorPos, PriorFactorRot are the extrinsic prior's
	// information weights.
	PriorFactorPos float64
	PriorFactorRot float64

	// NCumuFeature is the number of cycles the calibration-mode
	// target-plane accumulator batches before flushing.
	NCumuFeature int

	// EigInitial is the degeneracy analyzer's initial eigenvalue floor.
	EigInitial float64
	// EigThreCalib is the eigenvalue an extrinsic block's adaptive
	// threshold must clear for calibration to be declared converged.
	EigThreCalib float64

	// InitialExtrinsics seeds CalibState.Extrinsics, one pose per sensor
	// (QBL/TBL/TDBL). Sensor IdxRef's entry should be identity.
	InitialExtrinsics []spatialmath.Pose

	// Leaves, Neighbors configure the local-map builder (C4/C5).
	Leaves    localmap.LeafSizes
	Neighbors localmap.NeighborCounts

	// CalibThresholds configures the extrinsic initializer (C3).
	CalibThresholds calib.Thresholds
}

// DefaultConfig returns a Config for a rig of numSensors LiDARs with
// reference sensor idxRef, using the original's hard-coded window sizing
// and factor weights as a starting point.
func DefaultConfig(numSensors, idxRef int) Config {
	extrinsics := make([]spatialmath.Pose, numSensors)
	for i := range extrinsics {
		extrinsics[i] = spatialmath.Identity()
	}
	return Config{
		NumSensors:            numSensors,
		IdxRef:                idxRef,
		WindowSize:            5,
		OptWindowSize:         3,
		InitialExtrinsicMode:  ExtrinsicFrozen,
		MultipleThread:        false,
		Solver:                solver.DefaultOptions(),
		PriorFactor:           true,
		PointPlaneFactor:      true,
		PointEdgeFactor:       false,
		MarginalizationFactor: true,
		PriorFactorPos:        1,
		PriorFactorRot:        1,
		NCumuFeature:          10,
		EigInitial:            1e-3,
		EigThreCalib:          2e-2,
		InitialExtrinsics:     extrinsics,
		Leaves:                localmap.DefaultLeafSizes(),
		Neighbors:             localmap.DefaultNeighborCounts(),
		CalibThresholds:       calib.DefaultThresholds(),
	}
}

// Pivot returns P = WindowSize - OptWindowSize.
func (c Config) Pivot() int { return c.WindowSize - c.OptWindowSize }

// Validate checks the precondition invariants a frozen config must
// satisfy before an Estimator can be built from it, reporting every
// violated invariant at once rather than just the first.
func (c Config) Validate() error {
	var err error
	if c.NumSensors <= 0 {
		err = multierr.Append(err, errors.New("estimator: NumSensors must be positive"))
	}
	if c.IdxRef < 0 || c.IdxRef >= c.NumSensors {
		err = multierr.Append(err, errors.New("estimator: IdxRef out of range"))
	}
	if c.OptWindowSize < 0 || c.OptWindowSize > c.WindowSize {
		err = multierr.Append(err, errors.New("estimator: OptWindowSize must be in [0, WindowSize]"))
	}
	if len(c.InitialExtrinsics) != c.NumSensors {
		err = multierr.Append(err, errors.New("estimator: InitialExtrinsics must have one entry per sensor"))
	}
	if c.NCumuFeature < 1 {
		err = multierr.Append(err, errors.New("estimator: NCumuFeature must be at least 1"))
	}
	return err
}
