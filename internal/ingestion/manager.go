package ingestion

import (
	"context"
	"fmt"

	"b3-genetic-lab/internal/storage"
)

// Manager moves prices from a source into a price store.
// It enforces deterministic ordering and uses storage layer for duplicate rejection.
type Manager struct {
	source PriceSource
	store  storage.PriceStore
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Source PriceSource
	Store  storage.PriceStore
}

// NewManager creates a new ingestion manager with the provided source and store.
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		source: opts.Source,
		store:  opts.Store,
	}
}

// Result summarizes one ingestion.
type Result struct {
	Fetched    int
	Duplicates int // dropped in favor of a later record with the same key
	Stored     int
}

// Ingest fetches all points, keeps the last record per (date, symbol)
// and stores them with a single bulk insert.
// Points already present in the store fail the whole batch with ErrDuplicateKey.
func (m *Manager) Ingest(ctx context.Context) (Result, error) {
	var res Result
	if m.source == nil || m.store == nil {
		return res, nil
	}

	points, err := m.source.Fetch(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch prices: %w", err)
	}
	res.Fetched = len(points)
	if len(points) == 0 {
		return res, nil
	}

	SortPrices(points)
	points, res.Duplicates = DedupeLatest(points)
	if err := ValidatePriceOrdering(points); err != nil {
		return res, err
	}

	if err := m.store.InsertBulk(ctx, points); err != nil {
		return res, fmt.Errorf("store prices: %w", err)
	}
	res.Stored = len(points)

	return res, nil
}
