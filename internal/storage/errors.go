package storage

import "errors"

var (
	// ErrNotFound is returned when a run or price range does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run ID or (symbol, date) price is
	// inserted twice. Both stores are append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned for nil records, empty IDs, blank symbols
	// and inverted date windows.
	ErrInvalidInput = errors.New("invalid input")
)
