// Package service ties the epoch pipeline, the anomaly detector, and the
// result store into one batch evaluation flow shared by the CLI and the
// HTTP server.
package service

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/gnss-sentinel/anomaly"
	"github.com/signalsfoundry/gnss-sentinel/core"
	"github.com/signalsfoundry/gnss-sentinel/internal/logging"
	"github.com/signalsfoundry/gnss-sentinel/kb"
	"github.com/signalsfoundry/gnss-sentinel/model"
)

// Evaluator runs complete batch evaluations: solve every epoch, wait for
// the whole batch (the detector's sequential checks need it), evaluate
// anomalies, summarise, and record the result.
type Evaluator struct {
	Pipeline *core.Pipeline
	Detector *anomaly.Detector
	// Store retains evaluated batches for later retrieval. Nil disables
	// retention (the CLI one-shot path).
	Store *kb.ResultStore

	Log logging.Logger
}

// EvaluateBatch processes one ordered observation batch end to end. The
// returned result carries records, flags, and the operator summary; it has
// already been added to the store when one is configured.
func (e *Evaluator) EvaluateBatch(ctx context.Context, id string, batch []model.EpochObservation) (*kb.BatchResult, error) {
	if e.Pipeline == nil || e.Detector == nil {
		return nil, fmt.Errorf("evaluator is missing pipeline or detector")
	}
	log := e.Log
	if log == nil {
		log = logging.Noop()
	}

	ctx, log = logging.WithBatchLogger(ctx, log)
	if id == "" {
		id = logging.BatchIDFromContext(ctx)
	}

	log.Info(ctx, "evaluating observation batch",
		logging.String("id", id),
		logging.Int("epochs", len(batch)),
	)

	records := e.Pipeline.Run(ctx, batch)

	flags, err := e.Detector.Evaluate(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("evaluate batch %s: %w", id, err)
	}

	result := &kb.BatchResult{
		ID:      id,
		Records: records,
		Flags:   flags,
		Summary: anomaly.BuildSummary(records, flags),
	}

	if e.Store != nil {
		if err := e.Store.AddBatch(result); err != nil {
			return nil, fmt.Errorf("store batch %s: %w", id, err)
		}
	}

	return result, nil
}
