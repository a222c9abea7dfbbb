package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/signalsfoundry/gnss-sentinel/model"
)

// BatchInfo is a small summary of what was loaded from an observation
// document. It's mainly useful for logging from main().
type BatchInfo struct {
	Epochs          int
	TotalSatellites int
}

// Wire shapes for the observation document. Unexported; the public types
// live in model.
type observationDocJSON struct {
	// PseudorangeUnits is "meters" (default) or "seconds". Travel-time
	// pseudoranges are scaled by the speed of light on load so the core
	// only ever sees range units.
	PseudorangeUnits string      `json:"pseudorange_units"`
	Epochs           []epochJSON `json:"epochs"`
}

type epochJSON struct {
	Index              *int         `json:"index"` // optional; defaults to list position
	Time               string       `json:"time"`  // optional RFC3339 timestamp
	SatellitePositions [][3]float64 `json:"satellite_positions"`
	Pseudoranges       []float64    `json:"pseudoranges"`
	SatelliteCount     *int         `json:"satellite_count"` // optional; defaults to len(satellite_positions)
}

// LoadObservationBatch reads a JSON observation document from r and returns
// the ordered per-epoch observations plus a load summary.
//
// It fails only on JSON / structural errors (including per-epoch shape
// mismatches, which would otherwise poison every downstream invariant).
// Epochs that are merely unsolvable (too few satellites, bad geometry)
// load fine and are reported per-epoch by the pipeline instead.
func LoadObservationBatch(r io.Reader) ([]model.EpochObservation, *BatchInfo, error) {
	var doc observationDocJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("LoadObservationBatch: decode failed: %w", err)
	}

	scale := 1.0
	switch strings.ToLower(strings.TrimSpace(doc.PseudorangeUnits)) {
	case "", "meters", "metres":
		// already range units
	case "seconds":
		scale = SpeedOfLight
	default:
		return nil, nil, fmt.Errorf("LoadObservationBatch: unsupported pseudorange_units %q", doc.PseudorangeUnits)
	}

	batch := make([]model.EpochObservation, 0, len(doc.Epochs))
	info := &BatchInfo{}

	for i, e := range doc.Epochs {
		if len(e.SatellitePositions) != len(e.Pseudoranges) {
			return nil, nil, fmt.Errorf("LoadObservationBatch: epoch %d: %w", i, &InputShapeMismatchError{
				Satellites:   len(e.SatellitePositions),
				Pseudoranges: len(e.Pseudoranges),
			})
		}

		obs := model.EpochObservation{
			Index:              i,
			SatellitePositions: make([]model.ECEF, len(e.SatellitePositions)),
			Pseudoranges:       make([]float64, len(e.Pseudoranges)),
			SatelliteCount:     len(e.SatellitePositions),
		}
		if e.Index != nil {
			obs.Index = *e.Index
		}
		if e.SatelliteCount != nil {
			obs.SatelliteCount = *e.SatelliteCount
		}
		if e.Time != "" {
			ts, err := time.Parse(time.RFC3339, e.Time)
			if err != nil {
				return nil, nil, fmt.Errorf("LoadObservationBatch: epoch %d: bad time %q: %w", i, e.Time, err)
			}
			obs.Time = ts
		}

		for j, sat := range e.SatellitePositions {
			obs.SatellitePositions[j] = model.ECEF{X: sat[0], Y: sat[1], Z: sat[2]}
		}
		for j, pr := range e.Pseudoranges {
			obs.Pseudoranges[j] = pr * scale
		}

		info.TotalSatellites += obs.UsableSatellites()
		batch = append(batch, obs)
	}

	info.Epochs = len(batch)
	return batch, info, nil
}
