package anomaly

import (
	"fmt"
	"math"
	"math/rand"
)

// isolationScorer implements BatchScorer with isolation trees: anomalous
// points sit in sparse regions and get isolated by random axis-aligned
// splits after far fewer splits than clustered points. The average path
// length over an ensemble of trees becomes the anomaly score.
type isolationScorer struct {
	fraction   float64
	seed       int64
	trees      int
	sampleSize int
}

func newIsolationScorer(fraction float64, seed int64) *isolationScorer {
	return &isolationScorer{
		fraction:   fraction,
		seed:       seed,
		trees:      100,
		sampleSize: 256,
	}
}

type isoNode struct {
	// leaf fields
	size int
	// internal fields
	split float64
	dim   int
	left  *isoNode
	right *isoNode
}

func (s *isolationScorer) FitScore(features [][]float64) ([]bool, error) {
	n := len(features)
	if n == 0 {
		return nil, nil
	}
	dims := len(features[0])
	for i, f := range features {
		if len(f) != dims {
			return nil, fmt.Errorf("isolation: vector %d has %d dims, want %d", i, len(f), dims)
		}
	}

	rng := rand.New(rand.NewSource(s.seed))

	sample := s.sampleSize
	if sample > n {
		sample = n
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample)))) + 1

	roots := make([]*isoNode, s.trees)
	for t := range roots {
		idx := rng.Perm(n)[:sample]
		points := make([][]float64, sample)
		for i, j := range idx {
			points[i] = features[j]
		}
		roots[t] = buildIsoTree(rng, points, 0, maxDepth, dims)
	}

	norm := avgUnsuccessfulSearch(sample)
	scores := make([]float64, n)
	for i, f := range features {
		var total float64
		for _, root := range roots {
			total += pathLength(root, f, 0)
		}
		avg := total / float64(len(roots))
		scores[i] = math.Exp2(-avg / norm)
	}

	return markTopScores(scores, flagCount(s.fraction, n)), nil
}

func buildIsoTree(rng *rand.Rand, points [][]float64, depth, maxDepth, dims int) *isoNode {
	if len(points) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(points)}
	}

	// Pick a split dimension that still has spread; a few random probes
	// then a linear scan. If every dimension is constant the points are
	// identical and cannot be separated further.
	dim := -1
	var lo, hi float64
	for probe := 0; probe < dims; probe++ {
		d := rng.Intn(dims)
		l, h := dimRange(points, d)
		if h > l {
			dim, lo, hi = d, l, h
			break
		}
	}
	if dim < 0 {
		for d := 0; d < dims; d++ {
			l, h := dimRange(points, d)
			if h > l {
				dim, lo, hi = d, l, h
				break
			}
		}
	}
	if dim < 0 {
		return &isoNode{size: len(points)}
	}

	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, p := range points {
		if p[dim] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{size: len(points)}
	}

	return &isoNode{
		dim:   dim,
		split: split,
		left:  buildIsoTree(rng, left, depth+1, maxDepth, dims),
		right: buildIsoTree(rng, right, depth+1, maxDepth, dims),
	}
}

func dimRange(points [][]float64, dim int) (lo, hi float64) {
	lo, hi = points[0][dim], points[0][dim]
	for _, p := range points[1:] {
		if p[dim] < lo {
			lo = p[dim]
		}
		if p[dim] > hi {
			hi = p[dim]
		}
	}
	return lo, hi
}

func pathLength(node *isoNode, point []float64, depth float64) float64 {
	if node.left == nil {
		return depth + avgUnsuccessfulSearch(node.size)
	}
	if point[node.dim] < node.split {
		return pathLength(node.left, point, depth+1)
	}
	return pathLength(node.right, point, depth+1)
}

// avgUnsuccessfulSearch is c(n), the expected path length of an
// unsuccessful BST search over n points. It normalises path lengths so
// scores are comparable across sample sizes.
func avgUnsuccessfulSearch(n int) float64 {
	if n <= 1 {
		return 0
	}
	const eulerMascheroni = 0.5772156649015329
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}
