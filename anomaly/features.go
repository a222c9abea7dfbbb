package anomaly

import "github.com/signalsfoundry/gnss-sentinel/model"

// buildFeatures projects each eligible epoch into a numeric vector for the
// batch outlier scorer: position residual from the batch centroid (metres,
// three components), clock-bias residual from the batch mean, and PDOP.
// Centering keeps the position components on the same scale as the bias so
// no single huge ECEF coordinate dominates the distances.
//
// The projection is an internal detail of this package; downstream
// consumers only ever see the resulting flags.
func buildFeatures(records []model.EpochRecord, eligible []int) [][]float64 {
	n := len(eligible)

	var cx, cy, cz, cb float64
	for _, i := range eligible {
		est := records[i].Estimate
		cx += est.Position.X
		cy += est.Position.Y
		cz += est.Position.Z
		cb += est.ClockBias
	}
	cx /= float64(n)
	cy /= float64(n)
	cz /= float64(n)
	cb /= float64(n)

	features := make([][]float64, n)
	for k, i := range eligible {
		est := records[i].Estimate
		dop := records[i].DOP
		features[k] = []float64{
			est.Position.X - cx,
			est.Position.Y - cy,
			est.Position.Z - cz,
			est.ClockBias - cb,
			dop.PDOP,
		}
	}
	return features
}
