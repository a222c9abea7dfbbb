package kb

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/gnss-sentinel/model"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventBatchEvaluated EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
// Dashboards and other downstream consumers watch these instead of polling.
type Event struct {
	Type    EventType
	BatchID string
	Summary model.BatchSummary
}

// BatchResult is one fully evaluated observation batch: the ordered epoch
// records, their flags, and the operator summary.
type BatchResult struct {
	ID        string
	CreatedAt time.Time

	Records []model.EpochRecord
	Flags   []model.AnomalyFlag
	Summary model.BatchSummary
}

// ResultStore is an in-memory, thread-safe store for evaluated batches.
type ResultStore struct {
	mu sync.RWMutex

	batches map[string]*BatchResult

	subs []func(Event)
}

// NewResultStore constructs an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		batches: make(map[string]*BatchResult),
	}
}

// AddBatch stores an evaluated batch and notifies subscribers. It returns
// an error if the ID already exists.
func (s *ResultStore) AddBatch(result *BatchResult) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("batch result must have an ID")
	}

	s.mu.Lock()
	if _, exists := s.batches[result.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("batch with ID %q already exists", result.ID)
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	s.batches[result.ID] = result
	event := Event{
		Type:    EventBatchEvaluated,
		BatchID: result.ID,
		Summary: result.Summary,
	}
	subs := append([]func(Event){}, s.subs...)
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// GetBatch returns the batch with the given ID, or nil if not found.
func (s *ResultStore) GetBatch(id string) *BatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batches[id]
}

// ListBatches returns a snapshot slice of all stored batches, newest first.
func (s *ResultStore) ListBatches() []*BatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*BatchResult, 0, len(s.batches))
	for _, b := range s.batches {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function.
func (s *ResultStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < 0 || idx >= len(s.subs) {
			return
		}
		s.subs = append(s.subs[:idx], s.subs[idx+1:]...)
		idx = -1
	}
}
