package estimator

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/mlo-robotics/mlo-estimator/degeneracy"
	"github.com/mlo-robotics/mlo-estimator/factors"
	"github.com/mlo-robotics/mlo-estimator/localmap"
	"github.com/mlo-robotics/mlo-estimator/marginal"
	"github.com/mlo-robotics/mlo-estimator/pointcloud"
	"github.com/mlo-robotics/mlo-estimator/solver"
	"github.com/mlo-robotics/mlo-estimator/spatialmath"
)

func poseBlockID(i int) string { return fmt.Sprintf("pose:%d", i) }
func exBlockID(n int) string   { return fmt.Sprintf("ex:%d", n) }

// optimizeMap assembles this cycle's problem from the rebuilt local map and
// its feature matches (C4/C5), analyzes degeneracy (C7), solves (C6), writes
// the result back into the window and calibration state, and marginalizes
// the pivot pose out for next cycle (C8). Matches spec.md §4.4-4.7.
func (e *Estimator) optimizeMap() {
	pivot := e.cfg.Pivot()
	mapMode := localmap.Odometry
	if e.calibState.Mode == ExtrinsicOnline {
		mapMode = localmap.Calibrating
	}

	builder := localmap.New(e.cfg.NumSensors, e.cfg.IdxRef, pivot, e.cfg.Leaves, e.cfg.Neighbors)
	if !e.fixedLocalMap {
		builder.FreezeHistory(e.win, e.calibState.Extrinsics, mapMode)
		e.fixedLocalMap = true
	}
	maps := builder.Rebuild(e.win, e.calibState.Extrinsics, mapMode)
	matches := builder.Match(e.win, maps, e.calibState.Extrinsics, mapMode)

	problem := solver.NewProblem()
	poseBlocks := make(map[int]*solver.Block, e.win.Size()-pivot+1)
	for i := pivot; i <= e.win.Size(); i++ {
		poseBlocks[i] = problem.AddBlock(solver.NewPoseBlock(poseBlockID(i), e.win.Pose(i), i == pivot))
	}
	exBlocks := make(map[int]*solver.Block, e.cfg.NumSensors)
	for n := 0; n < e.cfg.NumSensors; n++ {
		fixed := n == e.cfg.IdxRef || e.calibState.Mode != ExtrinsicOnline
		exBlocks[n] = problem.AddBlock(solver.NewPoseBlock(exBlockID(n), e.calibState.Extrinsics[n], fixed))
	}

	e.addPriorResidual(problem)
	e.addExtrinsicPriors(problem, exBlocks)
	e.addFeatureResiduals(problem, poseBlocks, exBlocks, matches, pivot, mapMode)

	if flushed := e.accumulator.Tick(); len(flushed) > 0 {
		e.addAccumulatedTargetPlanes(problem, flushed)
	}

	e.runDegeneracy(problem)

	summary, err := solver.Solve(problem, e.cfg.Solver)
	if err != nil {
		e.log.Warnw("estimator: solve failed", "err", err)
		return
	}
	e.lastSummary = summary
	e.log.Infow("estimator: solve finished", "summary", summary.BriefReport())
	if e.cfg.Solver.CheckJacobians {
		e.lastMismatch = solver.CheckJacobians(problem)
		if len(e.lastMismatch) > 0 {
			e.log.Warnw("estimator: analytic/numeric Jacobian mismatch", "count", len(e.lastMismatch))
		}
	}

	for i, b := range poseBlocks {
		e.win.SetPose(i, b.Pose())
	}
	if e.calibState.Mode == ExtrinsicOnline {
		for n, b := range exBlocks {
			if n == e.cfg.IdxRef {
				continue
			}
			e.calibState.Extrinsics[n] = b.Pose()
		}
	}

	e.marginalizePivot(problem, poseBlocks, pivot)
}

// addPriorResidual rebinds the previous cycle's marginalization prior (if
// any) onto this cycle's freshly built blocks before adding it as a
// residual. Pose block IDs shift down by one logical index every cycle
// (spec.md's Design Notes on stable-ID marginalization), since the window's
// logical pivot never moves but the physical content sliding past it does;
// extrinsic block IDs stay put but still need their pointer rebound, since
// every cycle builds brand new Block objects.
func (e *Estimator) addPriorResidual(problem *solver.Problem) {
	if !e.cfg.MarginalizationFactor || e.prior == nil {
		return
	}
	for i, b := range e.prior.RetainedBlocks {
		var lookupID string
		if idx, ok := parsePoseBlockID(b.ID); ok {
			lookupID = poseBlockID(idx - 1)
		} else {
			lookupID = b.ID
		}
		if nb := problem.Block(lookupID); nb != nil {
			nb.ID = lookupID
			e.prior.RetainedBlocks[i] = nb
		} else {
			// The retained block no longer exists in this cycle's window
			// (can happen if OptWindowSize shrank); drop the prior rather
			// than reference a stale block.
			e.prior = nil
			return
		}
	}
	problem.AddResidual(e.prior)
}

func parsePoseBlockID(id string) (int, bool) {
	const prefix = "pose:"
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	var idx int
	if _, err := fmt.Sscanf(id, prefix+"%d", &idx); err != nil {
		return 0, false
	}
	return idx, true
}

// addExtrinsicPriors anchors every free non-reference extrinsic block
// against priorAnchor: Config.InitialExtrinsics, or the bootstrap's
// converged estimate once bootstrap has run (spec.md §4.5's extrinsic
// prior factor), so online refinement has something fixed to regularize
// against instead of drifting unconstrained cycle to cycle.
func (e *Estimator) addExtrinsicPriors(problem *solver.Problem, exBlocks map[int]*solver.Block) {
	if !e.cfg.PriorFactor || e.calibState.Mode != ExtrinsicOnline {
		return
	}
	for n := 0; n < e.cfg.NumSensors; n++ {
		if n == e.cfg.IdxRef {
			continue
		}
		problem.AddResidual(&factors.ExtrinsicPrior{
			ExBlock:      exBlocks[n],
			Prior:        e.priorAnchor[n],
			PositionInfo: e.cfg.PriorFactorPos,
			RotationInfo: e.cfg.PriorFactorRot,
		})
	}
}

// addFeatureResiduals wires the local map's matched points into per-slot
// point-plane/point-edge residuals (spec.md §4.5). Every factor also
// carries the pivot pose block (fixed for the solve, but a real parameter
// for the Jacobian the marginalizer computes against it), since each
// point is matched against map coefficients expressed in the pivot frame
// via pivot^-1 * pose[i] * ex_pose[n] (original estimator.cpp:520's
// pose_local_ composition). Direct factors only run over the half-open
// (pivot, W] range: a factor at the pivot slot itself would tie two fixed
// blocks, contributing nothing to the solve, matching the original's
// "for (i = pivot_idx + 1; i < WINDOW_SIZE + 1; i++)" residual loop. In
// Calibrating mode, a non-reference sensor's pivot-slot match is the one
// exception: it is queued into the cumulative accumulator instead of
// applied directly, matching the original's N_CUMU_FEATURE batching for
// the extrinsic target-plane factor, which explicitly reads
// surf_map_features_[n][pivot_idx].
func (e *Estimator) addFeatureResiduals(problem *solver.Problem, poseBlocks, exBlocks map[int]*solver.Block, matches [][]localmap.Matched, pivot int, mapMode localmap.Mode) {
	pivotBlock := poseBlocks[pivot]
	for slot, slotMatches := range matches {
		for _, m := range slotMatches {
			exBlock := exBlocks[m.Sensor]
			if mapMode == localmap.Calibrating && m.Sensor != e.cfg.IdxRef && slot == pivot {
				if m.Feature.Kind == pointcloud.Surface {
					// The map is in the pivot frame, where the pivot
					// slot's own pose is the identity.
					e.accumulator.Add(factors.TargetPlane{
						ExBlock: exBlock, FixedPose: spatialmath.Identity(),
						Point: m.Local, Normal: m.Feature.Normal(), D: m.Feature.Coeffs[3],
						Weight: m.Feature.Score,
					})
				}
				continue
			}
			poseBlock := poseBlocks[slot]
			if poseBlock == nil || slot == pivot {
				continue
			}
			switch m.Feature.Kind {
			case pointcloud.Surface:
				if !e.cfg.PointPlaneFactor {
					continue
				}
				problem.AddResidual(&factors.Plane{
					PivotBlock: pivotBlock, PoseBlock: poseBlock, ExBlock: exBlock,
					Point: m.Local, Normal: m.Feature.Normal(), D: m.Feature.Coeffs[3],
					Weight: m.Feature.Score,
				})
			case pointcloud.Edge:
				if !e.cfg.PointEdgeFactor {
					continue
				}
				problem.AddResidual(&factors.Edge{
					PivotBlock: pivotBlock, PoseBlock: poseBlock, ExBlock: exBlock,
					Point: m.Local, LinePoint: m.Feature.Point, Direction: m.Feature.Normal(),
					Weight: m.Feature.Score,
				})
			}
		}
	}
}

// addAccumulatedTargetPlanes rebinds a batch of flushed TargetPlane factors
// (queued over the last NCumuFeature cycles, each carrying a now-stale
// ExBlock pointer from whichever cycle it was queued in) onto this cycle's
// extrinsic blocks by ID, and adds them as residuals.
func (e *Estimator) addAccumulatedTargetPlanes(problem *solver.Problem, flushed []factors.TargetPlane) {
	for i := range flushed {
		tp := flushed[i]
		nb := problem.Block(tp.ExBlock.ID)
		if nb == nil {
			continue
		}
		tp.ExBlock = nb
		problem.AddResidual(&tp)
	}
}

// runDegeneracy evaluates the problem's pre-solve Jacobian and installs
// per-block projectors for ill-conditioned directions (spec.md §4.6, C7):
// pose blocks use the fixed EigInitial floor forever, extrinsic blocks use
// an adaptively-raised per-block threshold that is only allowed to clear a
// projector once it has seen evidence past the noise floor.
func (e *Estimator) runDegeneracy(problem *solver.Problem) {
	jac, layout, _, err := solver.Assemble(problem)
	if err != nil {
		e.log.Warnw("estimator: degeneracy pre-solve assembly failed", "err", err)
		return
	}
	thresholdFor := func(id string) float64 {
		if strings.HasPrefix(id, "ex:") {
			return e.threshold.Current(id)
		}
		return e.cfg.EigInitial
	}
	reports := degeneracy.AnalyzeWithThresholds(jac, layout, thresholdFor)
	for _, r := range reports {
		if !strings.HasPrefix(r.BlockID, "ex:") {
			continue
		}
		_, clear := e.threshold.Update(r.BlockID, r.SmallestEigen)
		if clear {
			// No direction cleared the noise floor this cycle: kill the
			// block's entire step rather than let a nil Projector fall
			// through as an identity pass-through (solver.project treats
			// nil as "apply the raw, unconstrained update").
			if b := problem.Block(r.BlockID); b != nil {
				b.Projector = mat.NewDense(6, 6, nil)
			}
		}
	}
}

// marginalizePivot folds every residual touching the pivot pose block into
// a linear prior over the blocks that survive the upcoming slide (C8,
// spec.md §4.7), replacing e.prior with the result (or nil, if nothing
// touched the pivot this cycle).
func (e *Estimator) marginalizePivot(problem *solver.Problem, poseBlocks map[int]*solver.Block, pivot int) {
	oldPrior := e.prior
	if !e.cfg.MarginalizationFactor {
		e.prior = nil
		return
	}
	drop := map[*solver.Block]bool{poseBlocks[pivot]: true}

	// oldPrior, if present, was already added to problem as a residual (so
	// it could pull this cycle's solve toward the previous linearization);
	// exclude it from the generic residual list here since Reduce takes it
	// as its own argument and always folds it in, touching or not.
	residuals := make([]solver.Residual, 0, len(problem.Residuals()))
	for _, r := range problem.Residuals() {
		if m, ok := r.(*factors.Marginal); ok && m == oldPrior {
			continue
		}
		residuals = append(residuals, r)
	}

	reduced, err := marginal.Reduce(residuals, oldPrior, drop)
	if err != nil {
		e.log.Warnw("estimator: marginalization failed, dropping prior", "err", err)
		e.prior = nil
		return
	}
	e.prior = reduced
}
