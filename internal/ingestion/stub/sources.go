package stub

import (
	"context"

	"b3-genetic-lab/internal/domain"
)

// StubPriceSource returns fixed in-memory points for testing.
// Points can be intentionally unordered to test sorting.
// Implements ingestion.PriceSource interface.
type StubPriceSource struct {
	points []*domain.PricePoint
	err    error
}

// NewStubPriceSource creates a new stub price source with the given points.
func NewStubPriceSource(points []*domain.PricePoint) *StubPriceSource {
	return &StubPriceSource{points: points}
}

// NewFailingPriceSource creates a stub source whose Fetch always fails with err.
func NewFailingPriceSource(err error) *StubPriceSource {
	return &StubPriceSource{err: err}
}

// Fetch returns copies of the configured points to prevent mutation.
func (s *StubPriceSource) Fetch(_ context.Context) ([]*domain.PricePoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	result := make([]*domain.PricePoint, 0, len(s.points))
	for _, p := range s.points {
		copy := *p
		result = append(result, &copy)
	}
	return result, nil
}
