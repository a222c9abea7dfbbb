package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/signalsfoundry/gnss-sentinel/anomaly"
	"github.com/signalsfoundry/gnss-sentinel/core"
	"github.com/signalsfoundry/gnss-sentinel/internal/config"
	"github.com/signalsfoundry/gnss-sentinel/internal/logging"
	"github.com/signalsfoundry/gnss-sentinel/internal/service"
	"github.com/signalsfoundry/gnss-sentinel/kb"
	"github.com/signalsfoundry/gnss-sentinel/model"
)

func main() {
	batchPath := flag.String("batch", "", "path to a JSON observation batch")
	configPath := flag.String("config", "", "optional YAML config file")
	format := flag.String("format", "text", "output format: text or json")
	flag.Parse()

	if *batchPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gnss-sentinel -batch observations.json [-config sentinel.yaml] [-format text|json]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(*batchPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open batch: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	batch, info, err := core.LoadObservationBatch(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load batch: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded observation batch: %d epochs, %d satellite observations\n",
		info.Epochs, info.TotalSatellites)

	log := logging.NewFromEnv()

	detector, err := anomaly.NewDetector(cfg.Detector.ToDetector(), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configure detector: %v\n", err)
		os.Exit(1)
	}

	evaluator := &service.Evaluator{
		Pipeline: &core.Pipeline{
			Solver:  cfg.Solver.ToSolver(),
			Workers: cfg.Pipeline.Workers,
			Log:     log,
		},
		Detector: detector,
		Log:      log,
	}

	result, err := evaluator.EvaluateBatch(context.Background(), "", batch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluate batch: %v\n", err)
		os.Exit(1)
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Summary); err != nil {
			fmt.Fprintf(os.Stderr, "encode summary: %v\n", err)
			os.Exit(1)
		}
	default:
		printReport(result)
	}

	if len(result.Summary.FlaggedEpochs) > 0 {
		os.Exit(3)
	}
}

func printReport(result *kb.BatchResult) {
	for i, r := range result.Records {
		fmt.Println(formatEpochLine(r, result.Flags[i]))
	}

	s := result.Summary
	fmt.Printf("Batch: %d epochs, %d solved, %d failed, %d flagged\n",
		s.Epochs, s.Solved, s.Failed, len(s.FlaggedEpochs))
	for _, f := range s.FailedEpochs {
		fmt.Printf("  epoch %d could not be evaluated: %s (%s)\n", f.EpochIndex, f.Kind, f.Message)
	}
	for reason, count := range s.FlagCounts {
		fmt.Printf("  %s: %d epoch(s)\n", reason, count)
	}
}

// formatEpochLine renders one epoch for the text report.
func formatEpochLine(r model.EpochRecord, flag model.AnomalyFlag) string {
	if !r.Solved() {
		return fmt.Sprintf("[%4d] unsolved: %v", r.Index, r.Err)
	}

	pdop := "n/a"
	if r.DOP != nil {
		pdop = fmt.Sprintf("%.2f", r.DOP.PDOP)
	}

	line := fmt.Sprintf("[%4d] pos=(%.1f, %.1f, %.1f) m bias=%.2f m PDOP=%s sats=%d iters=%d",
		r.Index,
		r.Estimate.Position.X, r.Estimate.Position.Y, r.Estimate.Position.Z,
		r.Estimate.ClockBias,
		pdop,
		r.SatelliteCount,
		r.Estimate.Iterations,
	)
	if !r.Estimate.Converged {
		line += " (not converged)"
	}
	for _, reason := range flag.Reasons {
		line += " !" + string(reason)
	}
	return line
}
