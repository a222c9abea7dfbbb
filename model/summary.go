package model

// FailedEpoch identifies an epoch that could not be evaluated, with the
// specific error kind so operators can tell "anomalous" apart from
// "unsolvable".
type FailedEpoch struct {
	EpochIndex int
	Kind       string
	Message    string
}

// BatchSummary is the operator-facing roll-up of one batch evaluation. It
// reports flags and failures separately: a failed epoch is not a flagged
// epoch, and vice versa.
type BatchSummary struct {
	Epochs int
	Solved int
	Failed int

	FailedEpochs []FailedEpoch

	// FlagCounts maps each reason to the number of epochs that carried it.
	FlagCounts map[FlagReason]int
	// FlaggedEpochs lists the indices of epochs with a non-empty reason set,
	// in time order.
	FlaggedEpochs []int
}
