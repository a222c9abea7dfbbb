// Package web exposes the batch evaluation service over HTTP. Dashboards
// and other consumers only ever see the JSON output contract here; the
// core stays unaware of them.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/signalsfoundry/gnss-sentinel/core"
	"github.com/signalsfoundry/gnss-sentinel/internal/logging"
	"github.com/signalsfoundry/gnss-sentinel/internal/observability"
	"github.com/signalsfoundry/gnss-sentinel/internal/service"
	"github.com/signalsfoundry/gnss-sentinel/kb"
	"github.com/signalsfoundry/gnss-sentinel/model"
)

// Handler builds the HTTP mux for the evaluation API. The collector is
// optional; when present every route is wrapped with request metrics.
func Handler(evaluator *service.Evaluator, store *kb.ResultStore, collector *observability.Collector, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Noop()
	}

	mux := http.NewServeMux()

	wrap := func(route string, h http.Handler) http.Handler {
		if collector == nil {
			return h
		}
		return collector.Middleware(route, h)
	}

	mux.Handle("/api/v1/process", wrap("/api/v1/process", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		batch, info, err := core.LoadObservationBatch(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if info.Epochs == 0 {
			writeError(w, http.StatusBadRequest, errEmptyBatch)
			return
		}

		result, err := evaluator.EvaluateBatch(r.Context(), "", batch)
		if err != nil {
			log.Error(r.Context(), "batch evaluation failed", logging.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, batchResultJSON(result))
	})))

	mux.Handle("/api/v1/batches", wrap("/api/v1/batches", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if store == nil {
			writeJSON(w, http.StatusOK, []batchListEntry{})
			return
		}

		batches := store.ListBatches()
		entries := make([]batchListEntry, 0, len(batches))
		for _, b := range batches {
			entries = append(entries, batchListEntry{
				ID:        b.ID,
				CreatedAt: b.CreatedAt.Format(time.RFC3339),
				Summary:   summaryJSON(b.Summary),
			})
		}
		writeJSON(w, http.StatusOK, entries)
	})))

	mux.Handle("/healthz", wrap("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"ok\":true}\n"))
	})))

	return mux
}

var errEmptyBatch = jsonError("batch contains no epochs")

type jsonError string

func (e jsonError) Error() string { return string(e) }

// ---- JSON response shapes (unexported so they can evolve freely) ----

type positionPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type dopPayload struct {
	GDOP float64 `json:"gdop"`
	PDOP float64 `json:"pdop"`
	HDOP float64 `json:"hdop"`
	VDOP float64 `json:"vdop"`
}

type epochErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type epochPayload struct {
	EpochIndex int                `json:"epoch_index"`
	Position   *positionPayload   `json:"position,omitempty"`
	ClockBias  *float64           `json:"clock_bias,omitempty"`
	Converged  *bool              `json:"converged,omitempty"`
	Iterations int                `json:"iterations,omitempty"`
	DOP        *dopPayload        `json:"dop,omitempty"`
	Flags      []string           `json:"flags"`
	Error      *epochErrorPayload `json:"error,omitempty"`
}

type summaryPayload struct {
	Epochs        int                 `json:"epochs"`
	Solved        int                 `json:"solved"`
	Failed        int                 `json:"failed"`
	FlaggedEpochs []int               `json:"flagged_epochs"`
	FlagCounts    map[string]int      `json:"flag_counts"`
	FailedEpochs  []epochFailureEntry `json:"failed_epochs"`
}

type epochFailureEntry struct {
	EpochIndex int    `json:"epoch_index"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

type batchPayload struct {
	BatchID string         `json:"batch_id"`
	Epochs  []epochPayload `json:"epochs"`
	Summary summaryPayload `json:"summary"`
}

type batchListEntry struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	Summary   summaryPayload `json:"summary"`
}

func batchResultJSON(result *kb.BatchResult) batchPayload {
	epochs := make([]epochPayload, 0, len(result.Records))
	for i, r := range result.Records {
		e := epochPayload{
			EpochIndex: r.Index,
			Flags:      []string{},
		}
		if i < len(result.Flags) {
			for _, reason := range result.Flags[i].Reasons {
				e.Flags = append(e.Flags, string(reason))
			}
		}
		if r.Estimate != nil {
			e.Position = &positionPayload{
				X: r.Estimate.Position.X,
				Y: r.Estimate.Position.Y,
				Z: r.Estimate.Position.Z,
			}
			bias := r.Estimate.ClockBias
			e.ClockBias = &bias
			converged := r.Estimate.Converged
			e.Converged = &converged
			e.Iterations = r.Estimate.Iterations
		}
		if r.DOP != nil {
			e.DOP = &dopPayload{
				GDOP: r.DOP.GDOP,
				PDOP: r.DOP.PDOP,
				HDOP: r.DOP.HDOP,
				VDOP: r.DOP.VDOP,
			}
		}
		if r.Err != nil {
			e.Error = &epochErrorPayload{
				Kind:    core.ErrorKind(r.Err),
				Message: r.Err.Error(),
			}
		}
		epochs = append(epochs, e)
	}

	return batchPayload{
		BatchID: result.ID,
		Epochs:  epochs,
		Summary: summaryJSON(result.Summary),
	}
}

func summaryJSON(s model.BatchSummary) summaryPayload {
	payload := summaryPayload{
		Epochs:        s.Epochs,
		Solved:        s.Solved,
		Failed:        s.Failed,
		FlaggedEpochs: s.FlaggedEpochs,
		FlagCounts:    make(map[string]int, len(s.FlagCounts)),
		FailedEpochs:  make([]epochFailureEntry, 0, len(s.FailedEpochs)),
	}
	if payload.FlaggedEpochs == nil {
		payload.FlaggedEpochs = []int{}
	}
	for reason, count := range s.FlagCounts {
		payload.FlagCounts[string(reason)] = count
	}
	for _, f := range s.FailedEpochs {
		payload.FailedEpochs = append(payload.FailedEpochs, epochFailureEntry{
			EpochIndex: f.EpochIndex,
			Kind:       f.Kind,
			Message:    f.Message,
		})
	}
	return payload
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
