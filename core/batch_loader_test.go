package core

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestLoadObservationBatch(t *testing.T) {
	doc := `{
		"epochs": [
			{
				"time": "2026-08-27T12:00:00Z",
				"satellite_positions": [[26560000,0,0],[0,26560000,0],[0,0,26560000],[-18000000,-18000000,8000000]],
				"pseudoranges": [20189000, 25940000, 25940000, 28950000]
			},
			{
				"index": 7,
				"satellite_count": 5,
				"satellite_positions": [[26560000,0,0],[0,26560000,0],[0,0,26560000],[-18000000,-18000000,8000000]],
				"pseudoranges": [20189001, 25940001, 25940001, 28950001]
			}
		]
	}`

	batch, info, err := LoadObservationBatch(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadObservationBatch: %v", err)
	}

	if info.Epochs != 2 || info.TotalSatellites != 8 {
		t.Fatalf("info = %d epochs / %d satellites, want 2 / 8", info.Epochs, info.TotalSatellites)
	}

	first := batch[0]
	if first.Index != 0 {
		t.Fatalf("first epoch index = %d, want the list position 0", first.Index)
	}
	if first.SatelliteCount != 4 {
		t.Fatalf("first epoch satellite_count = %d, want default 4", first.SatelliteCount)
	}
	wantTime := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	if !first.Time.Equal(wantTime) {
		t.Fatalf("first epoch time = %v, want %v", first.Time, wantTime)
	}
	if first.SatellitePositions[1].Y != 26560000 {
		t.Fatalf("satellite position not mapped: %+v", first.SatellitePositions[1])
	}

	second := batch[1]
	if second.Index != 7 {
		t.Fatalf("second epoch index = %d, want explicit 7", second.Index)
	}
	if second.SatelliteCount != 5 {
		t.Fatalf("second epoch satellite_count = %d, want explicit 5", second.SatelliteCount)
	}
}

func TestLoadObservationBatchTravelTimeUnits(t *testing.T) {
	doc := `{
		"pseudorange_units": "seconds",
		"epochs": [
			{
				"satellite_positions": [[26560000,0,0],[0,26560000,0],[0,0,26560000],[-18000000,-18000000,8000000]],
				"pseudoranges": [0.07, 0.08, 0.08, 0.09]
			}
		]
	}`

	batch, _, err := LoadObservationBatch(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadObservationBatch: %v", err)
	}

	want := 0.07 * SpeedOfLight
	if got := batch[0].Pseudoranges[0]; math.Abs(got-want) > 1e-6 {
		t.Fatalf("pseudorange = %.3f m, want %.3f m after travel-time scaling", got, want)
	}
}

func TestLoadObservationBatchUnknownUnits(t *testing.T) {
	doc := `{"pseudorange_units": "furlongs", "epochs": []}`
	_, _, err := LoadObservationBatch(strings.NewReader(doc))
	if err == nil || !strings.Contains(err.Error(), "furlongs") {
		t.Fatalf("got %v, want unsupported-units error naming the unit", err)
	}
}

func TestLoadObservationBatchShapeMismatch(t *testing.T) {
	doc := `{
		"epochs": [
			{
				"satellite_positions": [[26560000,0,0],[0,26560000,0],[0,0,26560000],[-18000000,-18000000,8000000]],
				"pseudoranges": [20189000, 25940000, 25940000, 28950000]
			},
			{
				"satellite_positions": [[26560000,0,0],[0,26560000,0]],
				"pseudoranges": [20189000]
			}
		]
	}`

	_, _, err := LoadObservationBatch(strings.NewReader(doc))
	var mismatch *InputShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want InputShapeMismatchError", err)
	}
	if !strings.Contains(err.Error(), "epoch 1") {
		t.Fatalf("error %q does not name the offending epoch", err)
	}
}

func TestLoadObservationBatchBadTime(t *testing.T) {
	doc := `{
		"epochs": [
			{
				"time": "yesterday",
				"satellite_positions": [[26560000,0,0]],
				"pseudoranges": [20189000]
			}
		]
	}`

	_, _, err := LoadObservationBatch(strings.NewReader(doc))
	if err == nil || !strings.Contains(err.Error(), "bad time") {
		t.Fatalf("got %v, want a bad-time error", err)
	}
}

func TestLoadObservationBatchMalformedJSON(t *testing.T) {
	_, _, err := LoadObservationBatch(strings.NewReader("{not json"))
	if err == nil {
		t.Fatalf("expected a decode error")
	}
}
