package core

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gnss-sentinel/model"
)

// ComputeDOP derives the dilution-of-precision metrics for one epoch's
// satellite geometry, linearized at the given (fixed) receiver position.
// No iteration happens here; the position is typically the solver's
// estimate for the same epoch.
//
// It fails with InsufficientSatellitesError for fewer than MinSatellites
// and with SingularGeometryError when HᵀH cannot be inverted. Callers must
// treat the latter as "DOP undefined for this epoch" rather than receiving
// NaN metrics.
func ComputeDOP(sats []model.ECEF, pos model.ECEF) (*model.DOPRecord, error) {
	if len(sats) < MinSatellites {
		return nil, &InsufficientSatellitesError{Have: len(sats), Need: MinSatellites}
	}

	h, _, err := designMatrix(sats, pos)
	if err != nil {
		return nil, err
	}

	var hth mat.Dense
	hth.Mul(h.T(), h)

	var q mat.Dense
	if err := q.Inverse(&hth); err != nil {
		return nil, &SingularGeometryError{Op: "dop", Err: err}
	}

	qxx := q.At(0, 0)
	qyy := q.At(1, 1)
	qzz := q.At(2, 2)
	qtt := q.At(3, 3)

	// A valid covariance inverse has a non-negative diagonal. Negative
	// values mean the inversion was numerically meaningless even though it
	// nominally succeeded.
	if qxx < 0 || qyy < 0 || qzz < 0 || qtt < 0 {
		return nil, &SingularGeometryError{Op: "dop"}
	}

	return &model.DOPRecord{
		GDOP: math.Sqrt(qxx + qyy + qzz + qtt),
		PDOP: math.Sqrt(qxx + qyy + qzz),
		HDOP: math.Sqrt(qxx + qyy),
		VDOP: math.Sqrt(qzz),
	}, nil
}
