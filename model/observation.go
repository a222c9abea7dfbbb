package model

import "time"

// EpochObservation is one epoch's worth of ranging data, as handed over by
// the ingestion layer. Satellite ECEF positions come from an external
// ephemeris provider; pseudoranges are already scaled to metres.
//
// SatellitePositions and Pseudoranges are paired index-for-index and must
// have equal length. SatelliteCount may exceed len(SatellitePositions) when
// some observed satellites were excluded from the solve.
type EpochObservation struct {
	Index int
	Time  time.Time

	SatellitePositions []ECEF
	Pseudoranges       []float64
	SatelliteCount     int
}

// UsableSatellites returns the number of satellites participating in the
// solve for this epoch.
func (o EpochObservation) UsableSatellites() int {
	return len(o.SatellitePositions)
}
