package reporting

import (
	"time"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/metrics"
)

// Report represents the outcome report of one optimization run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Config      domain.OptimizerConfig
	Seed        int64
	Duration    time.Duration

	// Data Summary
	DataSummary DataSummary

	// Outcome
	InitialCapital float64
	BestScore      float64
	ReturnPct      float64
	BestGenome     domain.Genome

	// Cycle breakdown (ordered by cycle)
	Cycles       []domain.CycleReport
	CycleSummary CycleSummary
	Performance  metrics.CycleMetrics

	// Symbols used by the best plan (sorted by pot count DESC, symbol ASC)
	SymbolUsage []SymbolUsageRow

	// Convergence (one row per generation)
	History []domain.GenerationStats
}

// DataSummary describes the price window the run was evaluated on.
type DataSummary struct {
	FirstDate  time.Time
	LastDate   time.Time
	NumCycles  int
	NumSymbols int
}

// CycleSummary aggregates per-cycle returns of the best plan.
type CycleSummary struct {
	WinningCycles int
	LosingCycles  int
	FlatCycles    int
	SkippedPots   int
	BestCycle     int // index into Cycles, -1 when empty
	WorstCycle    int // index into Cycles, -1 when empty
}

// SymbolUsageRow represents one symbol in the best plan.
type SymbolUsageRow struct {
	Symbol      string
	Pots        int     // (cycle, pot) slots holding the symbol
	Skipped     int     // slots with no usable price
	MeanReturn  float64 // mean pot return% over usable slots
	TotalProfit float64 // sum of proceeds minus invested value over usable slots
}

// RunSummaryRow represents one row in a run listing.
type RunSummaryRow struct {
	RunID          string
	StartedAt      time.Time
	Duration       time.Duration
	PopulationSize int
	NumGenerations int
	NumPots        int
	BestScore      float64
	ReturnPct      float64
}
