package memory

import (
	"context"
	"sort"
	"sync"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunRecord // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunRecord),
	}
}

// Insert adds a run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = copyRun(r)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

// List retrieves all runs, newest first.
func (s *RunStore) List(_ context.Context) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyRun(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

// copyRun copies the record and its slices so callers cannot mutate stored state.
func copyRun(r *domain.RunRecord) *domain.RunRecord {
	out := *r
	out.BestGenome = r.BestGenome.Clone()
	out.History = append([]domain.GenerationStats(nil), r.History...)
	out.Cycles = make([]domain.CycleReport, len(r.Cycles))
	for i, c := range r.Cycles {
		c.Pots = append([]domain.PotReport(nil), c.Pots...)
		out.Cycles[i] = c
	}
	return &out
}

var _ storage.RunStore = (*RunStore)(nil)
