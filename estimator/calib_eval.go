package estimator

// evalCalib checks, once per cycle while calibrating online, whether every
// non-reference sensor's extrinsic has accumulated enough well-conditioned
// evidence to freeze (spec.md §4.6's EigThreCalib criterion). Once every
// sensor clears it, the rig transitions back to ExtrinsicFrozen, the
// marginalization prior is discarded since it was linearized assuming the
// extrinsic blocks were still free variables, and the fixed-local-map flag
// is cleared so the next cycle refreezes history using the now-final
// extrinsics (spec.md §4.2's "clear fixed-local-map flag on EXTRINSIC
// 1->0").
func (e *Estimator) evalCalib() {
	if e.calibState.Mode != ExtrinsicOnline {
		return
	}
	for n := 0; n < e.cfg.NumSensors; n++ {
		if n == e.cfg.IdxRef {
			continue
		}
		if e.threshold.Current(exBlockID(n)) < e.cfg.EigThreCalib {
			return
		}
	}
	e.calibState.Mode = ExtrinsicFrozen
	e.prior = nil
	e.fixedLocalMap = false
	e.log.Infow("estimator: extrinsic calibration converged, freezing extrinsics")
}
