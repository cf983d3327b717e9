package ingestion

import (
	"errors"
	"sort"

	"b3-genetic-lab/internal/domain"
)

// ErrInvalidOrdering is returned when points are not properly ordered.
var ErrInvalidOrdering = errors.New("points are not in deterministic order")

// SortPrices orders points by (date ASC, symbol ASC).
// The sort is stable so duplicate keys keep their input order.
func SortPrices(points []*domain.PricePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return comparePrices(points[i], points[j]) < 0
	})
}

// ValidatePriceOrdering checks that points are strictly ordered by (date, symbol).
// Returns ErrInvalidOrdering if not.
func ValidatePriceOrdering(points []*domain.PricePoint) error {
	for i := 1; i < len(points); i++ {
		if comparePrices(points[i-1], points[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// DedupeLatest drops earlier records sharing a (date, symbol) key with a later one.
// Input must be sorted with SortPrices. Returns the deduplicated slice and the
// number of records dropped.
func DedupeLatest(points []*domain.PricePoint) ([]*domain.PricePoint, int) {
	if len(points) < 2 {
		return points, 0
	}
	out := make([]*domain.PricePoint, 0, len(points))
	for i, p := range points {
		if i+1 < len(points) && comparePrices(p, points[i+1]) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out, len(points) - len(out)
}

// comparePrices returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (date ASC, symbol ASC)
func comparePrices(a, b *domain.PricePoint) int {
	if !a.Date.Equal(b.Date) {
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	}
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	return 0
}
