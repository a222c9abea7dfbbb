package anomaly

import (
	"fmt"
	"sort"
)

// Supported outlier scorer methods.
const (
	MethodIsolation = "isolation"
	MethodOneClass  = "oneclass"
)

// BatchScorer is the uniform fit-and-score capability behind the
// StatisticalOutlier check. A scorer is fit once over the whole batch's
// feature vectors and scores those same vectors; it holds no state outside
// one FitScore invocation, so implementations are interchangeable to the
// detector.
type BatchScorer interface {
	// FitScore returns one verdict per input vector, true meaning outlier.
	// Given the same vectors and configuration, the verdicts are
	// deterministic.
	FitScore(features [][]float64) ([]bool, error)
}

// NewScorer builds the scorer selected by cfg.OutlierMethod.
func NewScorer(cfg Config) (BatchScorer, error) {
	fraction := cfg.ExpectedOutlierFraction
	if fraction == 0 {
		fraction = DefaultExpectedOutlierFraction
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}

	switch cfg.OutlierMethod {
	case "", MethodIsolation:
		return newIsolationScorer(fraction, seed), nil
	case MethodOneClass:
		return newOneClassScorer(fraction), nil
	default:
		return nil, fmt.Errorf("anomaly: unknown outlier_method %q", cfg.OutlierMethod)
	}
}

// flagCount converts the expected-outlier fraction into a verdict count for
// a batch of n vectors, rounding to nearest and never exceeding n.
func flagCount(fraction float64, n int) int {
	k := int(fraction*float64(n) + 0.5)
	if k < 0 {
		k = 0
	}
	if k > n {
		k = n
	}
	return k
}

// markTopScores flags the k highest-scoring vectors. Ties and ordering are
// resolved by index so verdicts are stable across runs.
func markTopScores(scores []float64, k int) []bool {
	n := len(scores)
	verdicts := make([]bool, n)
	if k <= 0 {
		return verdicts
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		return order[a] < order[b]
	})

	for i := 0; i < k && i < n; i++ {
		verdicts[order[i]] = true
	}
	return verdicts
}
