package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/gnss-sentinel/model"
)

// syntheticBatch builds n solvable epochs with per-epoch distinct truth
// positions, so order mix-ups show up as position mismatches.
func syntheticBatch(n int) ([]model.EpochObservation, []model.ECEF) {
	sats := spreadGeometry()
	batch := make([]model.EpochObservation, n)
	truths := make([]model.ECEF, n)
	for i := 0; i < n; i++ {
		truth := model.ECEF{X: 6371000, Y: float64(i) * 100, Z: float64(-i) * 50}
		truths[i] = truth
		batch[i] = model.EpochObservation{
			Index:              i,
			SatellitePositions: sats,
			Pseudoranges:       syntheticPseudoranges(sats, truth, 10),
			SatelliteCount:     len(sats),
		}
	}
	return batch, truths
}

type recordingMetrics struct {
	mu         sync.Mutex
	epochs     map[string]int
	batchSize  int
	batchCalls int
}

func (m *recordingMetrics) ObserveEpoch(outcome string, iterations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epochs == nil {
		m.epochs = make(map[string]int)
	}
	m.epochs[outcome]++
}

func (m *recordingMetrics) ObserveBatch(epochs int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchSize = epochs
	m.batchCalls++
}

func TestPipelinePreservesEpochOrder(t *testing.T) {
	batch, truths := syntheticBatch(32)

	p := NewPipeline(nil)
	p.Workers = 4

	records := p.Run(context.Background(), batch)
	if len(records) != len(batch) {
		t.Fatalf("got %d records, want %d", len(records), len(batch))
	}

	for i, r := range records {
		if r.Index != i {
			t.Fatalf("record %d carries index %d", i, r.Index)
		}
		if !r.Solved() {
			t.Fatalf("epoch %d unsolved: %v", i, r.Err)
		}
		if d := r.Estimate.Position.DistanceTo(truths[i]); d > 1e-3 {
			t.Fatalf("epoch %d position off by %.6f m; results likely reordered", i, d)
		}
	}
}

func TestPipelineCapturesFailuresWithoutDropping(t *testing.T) {
	batch, _ := syntheticBatch(6)

	// Starve epoch 2 below the minimum and break epoch 4's pairing.
	batch[2].SatellitePositions = batch[2].SatellitePositions[:3]
	batch[2].Pseudoranges = batch[2].Pseudoranges[:3]
	batch[2].SatelliteCount = 3
	batch[4].Pseudoranges = batch[4].Pseudoranges[:5]

	records := NewPipeline(nil).Run(context.Background(), batch)
	if len(records) != len(batch) {
		t.Fatalf("got %d records, want %d", len(records), len(batch))
	}

	var insufficient *InsufficientSatellitesError
	if !errors.As(records[2].Err, &insufficient) {
		t.Fatalf("epoch 2: got %v, want InsufficientSatellitesError", records[2].Err)
	}
	if records[2].Estimate != nil {
		t.Fatalf("epoch 2 should carry no estimate")
	}

	var mismatch *InputShapeMismatchError
	if !errors.As(records[4].Err, &mismatch) {
		t.Fatalf("epoch 4: got %v, want InputShapeMismatchError", records[4].Err)
	}

	for _, i := range []int{0, 1, 3, 5} {
		if !records[i].Solved() {
			t.Fatalf("epoch %d should have solved, got %v", i, records[i].Err)
		}
		if records[i].DOP == nil {
			t.Fatalf("epoch %d missing DOP", i)
		}
	}
}

func TestPipelineDOPUsesEpochOwnEstimate(t *testing.T) {
	batch, _ := syntheticBatch(4)

	records := NewPipeline(nil).Run(context.Background(), batch)
	for i, r := range records {
		if !r.Solved() || r.DOP == nil {
			t.Fatalf("epoch %d: record incomplete", i)
		}
		want, err := ComputeDOP(batch[i].SatellitePositions, r.Estimate.Position)
		if err != nil {
			t.Fatalf("epoch %d: ComputeDOP: %v", i, err)
		}
		if r.DOP.PDOP != want.PDOP || r.DOP.GDOP != want.GDOP {
			t.Fatalf("epoch %d: DOP not linearized at this epoch's estimate", i)
		}
	}
}

func TestPipelineDeterministicAcrossRuns(t *testing.T) {
	batch, _ := syntheticBatch(16)

	p := NewPipeline(nil)
	p.Workers = 8

	first := p.Run(context.Background(), batch)
	second := p.Run(context.Background(), batch)

	for i := range first {
		a, b := first[i], second[i]
		if a.Solved() != b.Solved() {
			t.Fatalf("epoch %d: solved state differs between runs", i)
		}
		if a.Solved() && a.Estimate.Position != b.Estimate.Position {
			t.Fatalf("epoch %d: position differs between runs", i)
		}
	}
}

func TestPipelineEmptyBatch(t *testing.T) {
	records := NewPipeline(nil).Run(context.Background(), nil)
	if len(records) != 0 {
		t.Fatalf("got %d records for empty batch", len(records))
	}
}

func TestPipelineReportsMetrics(t *testing.T) {
	batch, _ := syntheticBatch(5)
	batch[1].SatellitePositions = batch[1].SatellitePositions[:2]
	batch[1].Pseudoranges = batch[1].Pseudoranges[:2]
	batch[1].SatelliteCount = 2

	metrics := &recordingMetrics{}
	p := NewPipeline(nil)
	p.Metrics = metrics

	p.Run(context.Background(), batch)

	if metrics.batchCalls != 1 || metrics.batchSize != 5 {
		t.Fatalf("batch observation = %d calls / size %d, want 1 / 5", metrics.batchCalls, metrics.batchSize)
	}
	if metrics.epochs["ok"] != 4 {
		t.Fatalf("ok epochs = %d, want 4", metrics.epochs["ok"])
	}
	if metrics.epochs[KindInsufficientSatellites] != 1 {
		t.Fatalf("insufficient epochs = %d, want 1", metrics.epochs[KindInsufficientSatellites])
	}
}
