package storage

import (
	"context"
	"time"

	"b3-genetic-lab/internal/domain"
)

// PriceStore provides access to daily_prices storage.
type PriceStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (date, symbol).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetAll retrieves all points, ordered by date ASC, symbol ASC.
	GetAll(ctx context.Context) ([]*domain.PricePoint, error)

	// GetByDateRange retrieves points with date within [from, to] (inclusive).
	GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.PricePoint, error)

	// GetGlobalDateRange returns the earliest and latest stored dates.
	// Returns zero times if the store is empty.
	GetGlobalDateRange(ctx context.Context) (from, to time.Time, err error)
}

// RunStore provides access to optimization_runs storage.
type RunStore interface {
	// Insert adds a completed run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// List retrieves all runs, newest first.
	List(ctx context.Context) ([]*domain.RunRecord, error)
}
