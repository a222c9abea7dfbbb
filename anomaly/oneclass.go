package anomaly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// oneClassScorer implements BatchScorer with a one-class boundary estimate:
// fit the batch's mean and covariance, measure every vector's Mahalanobis
// distance from the centre, and place the decision boundary so the expected
// outlier fraction falls outside it. Unlike isolation scoring it needs no
// randomness, so it is trivially deterministic.
type oneClassScorer struct {
	fraction float64
}

func newOneClassScorer(fraction float64) *oneClassScorer {
	return &oneClassScorer{fraction: fraction}
}

func (s *oneClassScorer) FitScore(features [][]float64) ([]bool, error) {
	n := len(features)
	if n == 0 {
		return nil, nil
	}
	dims := len(features[0])
	for i, f := range features {
		if len(f) != dims {
			return nil, fmt.Errorf("oneclass: vector %d has %d dims, want %d", i, len(f), dims)
		}
	}

	data := mat.NewDense(n, dims, nil)
	for i, f := range features {
		data.SetRow(i, f)
	}

	mean := make([]float64, dims)
	for j := 0; j < dims; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}
	meanVec := mat.NewVecDense(dims, mean)

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	scores := make([]float64, n)
	var chol mat.Cholesky
	if chol.Factorize(&cov) || factorizeRidged(&chol, &cov) {
		for i, f := range features {
			scores[i] = stat.Mahalanobis(mat.NewVecDense(dims, f), meanVec, &chol)
		}
	} else {
		// Degenerate covariance even after regularisation: the batch is
		// essentially collapsed, so plain Euclidean distance from the mean
		// ranks points just as well.
		for i, f := range features {
			var sum float64
			for j, v := range f {
				d := v - mean[j]
				sum += d * d
			}
			scores[i] = math.Sqrt(sum)
		}
	}

	return markTopScores(scores, flagCount(s.fraction, n)), nil
}

// factorizeRidged retries the Cholesky factorisation with a small ridge on
// the covariance diagonal. Zero-variance features (a constant PDOP across
// the batch, say) make the raw covariance rank-deficient without making
// the distance ranking meaningless.
func factorizeRidged(chol *mat.Cholesky, cov *mat.SymDense) bool {
	d := cov.SymmetricDim()

	var trace float64
	for j := 0; j < d; j++ {
		trace += cov.At(j, j)
	}
	ridge := 1e-9 * trace / float64(d)
	if ridge <= 0 {
		ridge = 1e-12
	}

	ridged := mat.NewSymDense(d, nil)
	ridged.CopySym(cov)
	for j := 0; j < d; j++ {
		ridged.SetSym(j, j, ridged.At(j, j)+ridge)
	}
	return chol.Factorize(ridged)
}
