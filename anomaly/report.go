package anomaly

import (
	"github.com/signalsfoundry/gnss-sentinel/core"
	"github.com/signalsfoundry/gnss-sentinel/model"
)

// BuildSummary rolls one batch evaluation up into the operator-facing
// report: flag counts per reason, flagged epoch indices, and, separately,
// the epochs that failed to solve, each with its error kind. Flags and
// failures are deliberately distinct lists: "anomalous" and "could not be
// evaluated" must never blur together.
func BuildSummary(records []model.EpochRecord, flags []model.AnomalyFlag) model.BatchSummary {
	summary := model.BatchSummary{
		Epochs:     len(records),
		FlagCounts: make(map[model.FlagReason]int),
	}

	for _, r := range records {
		if r.Solved() {
			summary.Solved++
		}
		if r.Err != nil {
			summary.Failed++
			summary.FailedEpochs = append(summary.FailedEpochs, model.FailedEpoch{
				EpochIndex: r.Index,
				Kind:       core.ErrorKind(r.Err),
				Message:    r.Err.Error(),
			})
		}
	}

	for _, f := range flags {
		if f.Flagged() {
			summary.FlaggedEpochs = append(summary.FlaggedEpochs, f.EpochIndex)
		}
		for _, reason := range f.Reasons {
			summary.FlagCounts[reason]++
		}
	}

	return summary
}
