package core

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/signalsfoundry/gnss-sentinel/internal/logging"
	"github.com/signalsfoundry/gnss-sentinel/model"
)

// EpochMetricsRecorder receives per-epoch and per-batch pipeline
// observations. The observability collector satisfies this interface; the
// pipeline itself stays free of any metrics dependency.
type EpochMetricsRecorder interface {
	ObserveEpoch(outcome string, iterations int)
	ObserveBatch(epochs int, duration time.Duration)
}

// Pipeline sequences the position solver and the DOP calculator over an
// ordered batch of epochs. Distinct epochs share no mutable state, so they
// are solved on a small worker pool; results are reassembled by index so
// the output order is always the input (time) order.
type Pipeline struct {
	// Solver used for every epoch. Nil means a default NewSolver().
	Solver *Solver
	// Workers bounds epoch-level parallelism. Zero or negative means one
	// worker per CPU.
	Workers int

	Log     logging.Logger
	Metrics EpochMetricsRecorder
}

// NewPipeline returns a pipeline with a default solver and CPU-bound
// parallelism.
func NewPipeline(log logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Noop()
	}
	return &Pipeline{
		Solver: NewSolver(),
		Log:    log,
	}
}

// Run evaluates every epoch in the batch and returns one EpochRecord per
// input observation, in input order. Per-epoch failures are captured on the
// record, never dropped and never fatal to the batch. Run returns only after
// every epoch has finished, so callers can hand the full ordered sequence
// to anomaly evaluation (which needs the complete batch).
func (p *Pipeline) Run(ctx context.Context, batch []model.EpochObservation) []model.EpochRecord {
	start := time.Now()

	solver := p.Solver
	if solver == nil {
		solver = NewSolver()
	}
	log := p.Log
	if log == nil {
		log = logging.Noop()
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(batch) {
		workers = len(batch)
	}
	if workers < 1 {
		workers = 1
	}

	records := make([]model.EpochRecord, len(batch))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = p.evaluateEpoch(ctx, solver, log, batch[i])
			}
		}()
	}
	for i := range batch {
		jobs <- i
	}
	close(jobs)

	// Join barrier: PositionJump and the batch outlier scorer both need
	// the complete ordered sequence before they can run.
	wg.Wait()

	if p.Metrics != nil {
		p.Metrics.ObserveBatch(len(batch), time.Since(start))
	}

	return records
}

func (p *Pipeline) evaluateEpoch(ctx context.Context, solver *Solver, log logging.Logger, obs model.EpochObservation) model.EpochRecord {
	record := model.EpochRecord{
		Index:          obs.Index,
		SatelliteCount: obs.SatelliteCount,
	}

	estimate, err := solver.Solve(obs.SatellitePositions, obs.Pseudoranges)
	if err != nil {
		record.Err = err
		p.observeEpoch(ErrorKind(err), 0)
		log.Warn(ctx, "epoch failed to solve",
			logging.Int("epoch", obs.Index),
			logging.String("kind", ErrorKind(err)),
			logging.String("error", err.Error()),
		)
		return record
	}
	record.Estimate = estimate

	// DOP is always computed at this epoch's own estimate, never a stale
	// one. A DOP failure leaves the position usable for continuity checks.
	dop, err := ComputeDOP(obs.SatellitePositions, estimate.Position)
	if err != nil {
		record.Err = err
		p.observeEpoch(ErrorKind(err), estimate.Iterations)
		log.Warn(ctx, "epoch solved but DOP undefined",
			logging.Int("epoch", obs.Index),
			logging.String("kind", ErrorKind(err)),
		)
		return record
	}
	record.DOP = dop

	p.observeEpoch("ok", estimate.Iterations)
	return record
}

func (p *Pipeline) observeEpoch(outcome string, iterations int) {
	if p.Metrics != nil {
		p.Metrics.ObserveEpoch(outcome, iterations)
	}
}
