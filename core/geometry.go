package core

import (
	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gnss-sentinel/model"
)

// SpeedOfLight is the vacuum speed of light in metres per second. The core
// carries clock bias in metres, so this constant only matters at the
// ingestion edge when pseudoranges arrive as signal travel times and must be
// scaled to range units.
const SpeedOfLight = 299792458.0

// MinSatellites is the smallest satellite count for which the
// position/clock system is determined. Below this the solve is ill-posed
// and both the solver and the DOP calculator refuse to run.
const MinSatellites = 4

// designMatrix builds the N×4 linearized observation matrix at pos: the
// first three columns are the negated unit line-of-sight vectors from
// receiver to each satellite, the fourth column is all ones (clock-bias
// partial). It also returns the geometric range to each satellite.
//
// A satellite coinciding with the linearization point has no defined
// line of sight; that degenerates the geometry.
func designMatrix(sats []model.ECEF, pos model.ECEF) (*mat.Dense, []float64, error) {
	n := len(sats)
	h := mat.NewDense(n, 4, nil)
	ranges := make([]float64, n)

	for i, sat := range sats {
		diff := sat.Sub(pos)
		r := diff.Norm()
		if r == 0 {
			return nil, nil, &SingularGeometryError{Op: "design"}
		}
		ranges[i] = r
		h.Set(i, 0, -diff.X/r)
		h.Set(i, 1, -diff.Y/r)
		h.Set(i, 2, -diff.Z/r)
		h.Set(i, 3, 1)
	}

	return h, ranges, nil
}
