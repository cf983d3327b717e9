package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/metrics"
	"b3-genetic-lab/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	runStore storage.RunStore
	now      func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore) *Generator {
	return &Generator{
		runStore: runStore,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a run and builds its report.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return g.FromRun(run), nil
}

// ListRuns returns one summary row per stored run, newest first.
func (g *Generator) ListRuns(ctx context.Context) ([]RunSummaryRow, error) {
	runs, err := g.runStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	rows := make([]RunSummaryRow, len(runs))
	for i, r := range runs {
		rows[i] = RunSummaryRow{
			RunID:          r.RunID,
			StartedAt:      r.StartedAt,
			Duration:       r.Duration(),
			PopulationSize: r.Config.PopulationSize,
			NumGenerations: r.Config.NumGenerations,
			NumPots:        r.Config.NumPots,
			BestScore:      r.BestScore,
			ReturnPct:      r.ReturnPct,
		}
	}
	return rows, nil
}

// FromRun builds a report from an in-memory run record.
func (g *Generator) FromRun(run *domain.RunRecord) *Report {
	return &Report{
		GeneratedAt: g.now(),
		RunID:       run.RunID,
		Config:      run.Config,
		Seed:        run.Seed,
		Duration:    run.Duration(),
		DataSummary: DataSummary{
			FirstDate:  run.FirstDate,
			LastDate:   run.LastDate,
			NumCycles:  run.NumCycles,
			NumSymbols: run.NumSymbols,
		},
		InitialCapital: run.Config.InitialCapital,
		BestScore:      run.BestScore,
		ReturnPct:      run.ReturnPct,
		BestGenome:     run.BestGenome,
		Cycles:         run.Cycles,
		CycleSummary:   summarizeCycles(run.Cycles),
		Performance:    metrics.ComputeCycleMetrics(run.Cycles),
		SymbolUsage:    symbolUsage(run.Cycles),
		History:        run.History,
	}
}

// summarizeCycles counts winning/losing cycles and finds the extremes.
func summarizeCycles(cycles []domain.CycleReport) CycleSummary {
	s := CycleSummary{BestCycle: -1, WorstCycle: -1}
	for i, c := range cycles {
		switch {
		case c.ReturnPct > 0:
			s.WinningCycles++
		case c.ReturnPct < 0:
			s.LosingCycles++
		default:
			s.FlatCycles++
		}
		for _, p := range c.Pots {
			if p.Skipped {
				s.SkippedPots++
			}
		}
		if s.BestCycle < 0 || c.ReturnPct > cycles[s.BestCycle].ReturnPct {
			s.BestCycle = i
		}
		if s.WorstCycle < 0 || c.ReturnPct < cycles[s.WorstCycle].ReturnPct {
			s.WorstCycle = i
		}
	}
	return s
}

// symbolUsage groups pot outcomes by symbol.
func symbolUsage(cycles []domain.CycleReport) []SymbolUsageRow {
	bySymbol := make(map[string]*SymbolUsageRow)
	returnSums := make(map[string]float64)

	for _, c := range cycles {
		potValue := 0.0
		if len(c.Pots) > 0 {
			potValue = c.CapitalBefore / float64(len(c.Pots))
		}
		for _, p := range c.Pots {
			row := bySymbol[p.Symbol]
			if row == nil {
				row = &SymbolUsageRow{Symbol: p.Symbol}
				bySymbol[p.Symbol] = row
			}
			row.Pots++
			if p.Skipped {
				row.Skipped++
				continue
			}
			returnSums[p.Symbol] += p.ReturnPct
			row.TotalProfit += p.Proceeds - potValue
		}
	}

	rows := make([]SymbolUsageRow, 0, len(bySymbol))
	for sym, row := range bySymbol {
		if used := row.Pots - row.Skipped; used > 0 {
			row.MeanReturn = returnSums[sym] / float64(used)
		}
		rows = append(rows, *row)
	}

	// Sort by (pots DESC, symbol ASC)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Pots != rows[j].Pots {
			return rows[i].Pots > rows[j].Pots
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	return rows
}
