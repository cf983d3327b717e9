package domain

import "time"

// RunRecord represents a completed optimization run.
// Corresponds to optimization_runs table in PostgreSQL.
type RunRecord struct {
	RunID string // deterministic hash, see idhash.ComputeRunID

	// Configuration
	Config OptimizerConfig
	Seed   int64 // seed actually used by the random source

	// Data window
	FirstDate  time.Time
	LastDate   time.Time
	NumCycles  int
	NumSymbols int

	// Outcome
	BestGenome Genome
	BestScore  float64
	ReturnPct  float64 // (best/initial - 1) * 100
	Cycles     []CycleReport
	History    []GenerationStats

	// Metadata
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall-clock time spent on the run.
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
