package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[priceKey]*domain.PricePoint
}

type priceKey struct {
	date   time.Time
	symbol string
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[priceKey]*domain.PricePoint),
	}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *PriceStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[priceKey]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := priceKey{domain.TruncateDate(p.Date), p.Symbol}

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		key := priceKey{domain.TruncateDate(p.Date), p.Symbol}
		s.data[key] = copyPoint(p, key.date)
	}

	return nil
}

// GetAll retrieves all points, ordered by date ASC, symbol ASC.
func (s *PriceStore) GetAll(_ context.Context) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PricePoint, 0, len(s.data))
	for k, p := range s.data {
		result = append(result, copyPoint(p, k.date))
	}
	sortPoints(result)

	return result, nil
}

// GetByDateRange retrieves points with date within [from, to] (inclusive).
func (s *PriceStore) GetByDateRange(_ context.Context, from, to time.Time) ([]*domain.PricePoint, error) {
	from, to = domain.TruncateDate(from), domain.TruncateDate(to)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for k, p := range s.data {
		if !k.date.Before(from) && !k.date.After(to) {
			result = append(result, copyPoint(p, k.date))
		}
	}
	sortPoints(result)

	return result, nil
}

// GetGlobalDateRange returns min and max dates across all data.
func (s *PriceStore) GetGlobalDateRange(_ context.Context) (from, to time.Time, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := true
	for k := range s.data {
		if first {
			from, to = k.date, k.date
			first = false
			continue
		}
		if k.date.Before(from) {
			from = k.date
		}
		if k.date.After(to) {
			to = k.date
		}
	}

	return from, to, nil
}

func copyPoint(p *domain.PricePoint, date time.Time) *domain.PricePoint {
	out := &domain.PricePoint{Date: date, Symbol: p.Symbol}
	if p.Close != nil {
		v := *p.Close
		out.Close = &v
	}
	return out
}

func sortPoints(points []*domain.PricePoint) {
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].Symbol < points[j].Symbol
	})
}

var _ storage.PriceStore = (*PriceStore)(nil)
