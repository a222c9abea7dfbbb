package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/signalsfoundry/gnss-sentinel/anomaly"
	"github.com/signalsfoundry/gnss-sentinel/core"
	"github.com/signalsfoundry/gnss-sentinel/internal/service"
	"github.com/signalsfoundry/gnss-sentinel/kb"
	"github.com/signalsfoundry/gnss-sentinel/model"
)

func testHandler(t *testing.T) (http.Handler, *kb.ResultStore) {
	t.Helper()

	detector, err := anomaly.NewDetector(anomaly.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	store := kb.NewResultStore()
	evaluator := &service.Evaluator{
		Pipeline: core.NewPipeline(nil),
		Detector: detector,
		Store:    store,
	}
	return Handler(evaluator, store, nil, nil), store
}

// observationDoc renders a JSON batch with pseudoranges consistent with the
// given truth position, plus one optional short epoch.
func observationDoc(t *testing.T, epochs int, withShortEpoch bool) []byte {
	t.Helper()

	sats := []model.ECEF{
		{X: 26560e3, Y: 0, Z: 0},
		{X: 0, Y: 26560e3, Z: 0},
		{X: 0, Y: 0, Z: 26560e3},
		{X: -18000e3, Y: -18000e3, Z: 8000e3},
		{X: 15000e3, Y: -20000e3, Z: 10000e3},
	}
	truth := model.ECEF{X: 6371000, Y: 50, Z: -20}

	type epochDoc struct {
		SatellitePositions [][3]float64 `json:"satellite_positions"`
		Pseudoranges       []float64    `json:"pseudoranges"`
	}
	doc := struct {
		Epochs []epochDoc `json:"epochs"`
	}{}

	for i := 0; i < epochs; i++ {
		e := epochDoc{}
		for _, s := range sats {
			e.SatellitePositions = append(e.SatellitePositions, [3]float64{s.X, s.Y, s.Z})
			e.Pseudoranges = append(e.Pseudoranges, s.DistanceTo(truth))
		}
		doc.Epochs = append(doc.Epochs, e)
	}
	if withShortEpoch {
		e := epochDoc{}
		for _, s := range sats[:3] {
			e.SatellitePositions = append(e.SatellitePositions, [3]float64{s.X, s.Y, s.Z})
			e.Pseudoranges = append(e.Pseudoranges, s.DistanceTo(truth))
		}
		doc.Epochs = append(doc.Epochs, e)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal observation doc: %v", err)
	}
	return b
}

func TestProcessEndpoint(t *testing.T) {
	handler, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", bytes.NewReader(observationDoc(t, 3, true)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got struct {
		BatchID string `json:"batch_id"`
		Epochs  []struct {
			EpochIndex int      `json:"epoch_index"`
			Position   *struct{ X, Y, Z float64 }
			Flags      []string `json:"flags"`
			Error      *struct {
				Kind string `json:"kind"`
			} `json:"error"`
		} `json:"epochs"`
		Summary struct {
			Epochs        int            `json:"epochs"`
			Solved        int            `json:"solved"`
			Failed        int            `json:"failed"`
			FlaggedEpochs []int          `json:"flagged_epochs"`
			FlagCounts    map[string]int `json:"flag_counts"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if got.BatchID == "" {
		t.Fatalf("response missing batch_id")
	}
	if len(got.Epochs) != 4 {
		t.Fatalf("response has %d epochs, want 4", len(got.Epochs))
	}
	if got.Summary.Epochs != 4 || got.Summary.Solved != 3 || got.Summary.Failed != 1 {
		t.Fatalf("summary = %+v", got.Summary)
	}

	short := got.Epochs[3]
	if short.Error == nil || short.Error.Kind != core.KindInsufficientSatellites {
		t.Fatalf("short epoch error = %+v, want kind %q", short.Error, core.KindInsufficientSatellites)
	}
	if !contains(short.Flags, string(model.FlagInsufficientSatellites)) {
		t.Fatalf("short epoch flags = %v, want insufficient-satellites", short.Flags)
	}
	for i, e := range got.Epochs {
		if e.Flags == nil {
			t.Fatalf("epoch %d: flags must encode as an array, not null", i)
		}
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestProcessRejectsWrongMethod(t *testing.T) {
	handler, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/process", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow = %q, want POST", allow)
	}
}

func TestProcessRejectsMalformedBody(t *testing.T) {
	handler, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", strings.NewReader("{oops"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestProcessRejectsEmptyBatch(t *testing.T) {
	handler, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", strings.NewReader(`{"epochs": []}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBatchesEndpoint(t *testing.T) {
	handler, _ := testHandler(t)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process", bytes.NewReader(observationDoc(t, 2, false)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("process %d: status %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var entries []struct {
		ID        string `json:"id"`
		CreatedAt string `json:"created_at"`
		Summary   struct {
			Epochs int `json:"epochs"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("listed %d batches, want 2", len(entries))
	}
	for i, e := range entries {
		if e.ID == "" || e.CreatedAt == "" {
			t.Fatalf("entry %d incomplete: %+v", i, e)
		}
		if e.Summary.Epochs != 2 {
			t.Fatalf("entry %d summary epochs = %d, want 2", i, e.Summary.Epochs)
		}
	}
}

func TestBatchesRejectsWrongMethod(t *testing.T) {
	handler, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body["ok"] {
		t.Fatalf("healthz body = %s", rec.Body.String())
	}
}
