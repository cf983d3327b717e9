package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"b3-genetic-lab/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(capital|population|generations|mutation|pots|seed|first_date|last_date|num_symbols|started_at_ns)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	cfg domain.OptimizerConfig,
	seed int64,
	firstDate, lastDate time.Time,
	numSymbols int,
	startedAt time.Time,
) string {
	data := fmt.Sprintf("%g|%d|%d|%g|%d|%d|%s|%s|%d|%d",
		cfg.InitialCapital,
		cfg.PopulationSize,
		cfg.NumGenerations,
		cfg.MutationRate,
		cfg.NumPots,
		seed,
		firstDate.UTC().Format(domain.DateLayout),
		lastDate.UTC().Format(domain.DateLayout),
		numSymbols,
		startedAt.UnixNano(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
