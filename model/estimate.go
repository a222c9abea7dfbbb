package model

// PositionEstimate is the solver's output for one epoch. It is immutable
// once produced.
type PositionEstimate struct {
	// Position is the estimated receiver position, ECEF metres.
	Position ECEF
	// ClockBias is the receiver clock offset expressed in metres, i.e. the
	// same units as the pseudoranges it was estimated from.
	ClockBias float64
	// Iterations is the number of Gauss-Newton iterations consumed.
	Iterations int
	// Converged reports whether the final update magnitude fell below the
	// convergence epsilon, as opposed to the iteration cap being reached.
	// A non-converged estimate is still a reportable result.
	Converged bool
}

// DOPRecord holds the dilution-of-precision metrics for one epoch. All
// values are non-negative; a nil *DOPRecord on an EpochRecord means DOP was
// undefined for that epoch (degenerate geometry).
type DOPRecord struct {
	GDOP float64
	PDOP float64
	HDOP float64
	VDOP float64
}

// EpochRecord is the per-epoch unit the anomaly detector consumes. Records
// form an ordered sequence; order is time order and is preserved end-to-end.
//
// A record with a nil Estimate always carries Err (the solve itself
// failed). A record may carry both an Estimate and an Err when only the
// DOP step failed: the position stays usable for continuity checks while
// DOP-dependent checks skip the epoch.
type EpochRecord struct {
	Index          int
	SatelliteCount int

	Estimate *PositionEstimate
	DOP      *DOPRecord

	// Err records why this epoch could not be (fully) evaluated. Failed
	// epochs stay in the sequence so downstream checks can skip over them
	// explicitly rather than silently re-indexing.
	Err error
}

// Solved reports whether this epoch produced a usable position.
func (r EpochRecord) Solved() bool {
	return r.Estimate != nil
}
