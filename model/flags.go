package model

// FlagReason names one anomaly check that fired for an epoch.
type FlagReason string

const (
	// FlagGeometryDegraded: PDOP exceeded the configured threshold.
	FlagGeometryDegraded FlagReason = "geometry_degraded"
	// FlagInsufficientSatellites: observed satellite count below the minimum.
	FlagInsufficientSatellites FlagReason = "insufficient_satellites"
	// FlagPositionJump: position moved further than the jump threshold from
	// the nearest preceding successfully solved epoch.
	FlagPositionJump FlagReason = "position_jump"
	// FlagStatisticalOutlier: the batch outlier scorer marked this epoch.
	FlagStatisticalOutlier FlagReason = "statistical_outlier"
)

// AnomalyFlag is the per-epoch result of anomaly evaluation. An epoch with
// an empty Reasons set is unflagged. Reasons accumulate: every check that
// fired is present, none suppresses another.
type AnomalyFlag struct {
	EpochIndex int
	Reasons    []FlagReason
}

// Flagged reports whether any check fired for this epoch.
func (f AnomalyFlag) Flagged() bool {
	return len(f.Reasons) > 0
}

// Has reports whether a specific reason is present.
func (f AnomalyFlag) Has(reason FlagReason) bool {
	for _, r := range f.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}
