package core

import (
	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gnss-sentinel/model"
)

// Solver defaults. These are named so configuration can override them and
// tests can reference them directly.
const (
	DefaultMaxIterations      = 10
	DefaultConvergenceEpsilon = 1e-4 // metres
)

// Solver estimates receiver position and clock bias from one epoch's
// satellite geometry and pseudoranges using Gauss-Newton iteration. The
// zero value solves from the ECEF origin with default iteration limits; a
// Solver is safe for concurrent use because Solve does not mutate it.
type Solver struct {
	// MaxIterations caps the Gauss-Newton loop. Zero means
	// DefaultMaxIterations.
	MaxIterations int
	// ConvergenceEpsilon is the update-norm threshold, in metres, below
	// which the solve is considered converged. Zero means
	// DefaultConvergenceEpsilon.
	ConvergenceEpsilon float64
	// InitialPosition and InitialClockBias seed the state vector. The
	// defaults (origin, zero bias) match the cold-start behaviour expected
	// by callers without a prior fix.
	InitialPosition  model.ECEF
	InitialClockBias float64
}

// NewSolver returns a Solver with default limits.
func NewSolver() *Solver {
	return &Solver{
		MaxIterations:      DefaultMaxIterations,
		ConvergenceEpsilon: DefaultConvergenceEpsilon,
	}
}

// Solve runs the iterative least-squares refinement for one epoch.
//
// It fails with InputShapeMismatchError when positions and pseudoranges are
// not paired, InsufficientSatellitesError when fewer than MinSatellites
// participate, and SingularGeometryError when the least-squares update has
// no well-conditioned solution. Exhausting MaxIterations is not an error:
// the returned estimate simply reports Converged=false.
func (s *Solver) Solve(sats []model.ECEF, pseudoranges []float64) (*model.PositionEstimate, error) {
	if len(sats) != len(pseudoranges) {
		return nil, &InputShapeMismatchError{
			Satellites:   len(sats),
			Pseudoranges: len(pseudoranges),
		}
	}
	if len(sats) < MinSatellites {
		return nil, &InsufficientSatellitesError{Have: len(sats), Need: MinSatellites}
	}

	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	eps := s.ConvergenceEpsilon
	if eps <= 0 {
		eps = DefaultConvergenceEpsilon
	}

	pos := s.InitialPosition
	bias := s.InitialClockBias

	n := len(sats)
	residual := mat.NewVecDense(n, nil)

	converged := false
	iterations := 0
	for iterations < maxIter {
		iterations++

		h, ranges, err := designMatrix(sats, pos)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			residual.SetVec(i, pseudoranges[i]-(ranges[i]+bias))
		}

		// QR-based least-squares solve of H·Δx ≈ y. gonum reports a
		// Condition error for rank-deficient or near-singular systems;
		// that is exactly the degenerate-geometry case, so it surfaces as
		// SingularGeometryError instead of a garbage update.
		var delta mat.VecDense
		if err := delta.SolveVec(h, residual); err != nil {
			return nil, &SingularGeometryError{Op: "solve", Err: err}
		}

		pos.X += delta.AtVec(0)
		pos.Y += delta.AtVec(1)
		pos.Z += delta.AtVec(2)
		bias += delta.AtVec(3)

		if mat.Norm(&delta, 2) < eps {
			converged = true
			break
		}
	}

	return &model.PositionEstimate{
		Position:   pos,
		ClockBias:  bias,
		Iterations: iterations,
		Converged:  converged,
	}, nil
}
