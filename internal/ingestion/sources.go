package ingestion

import (
	"context"

	"b3-genetic-lab/internal/domain"
)

// PriceSource provides raw daily price records.
type PriceSource interface {
	// Fetch returns all available points. Order is not guaranteed.
	Fetch(ctx context.Context) ([]*domain.PricePoint, error)
}
