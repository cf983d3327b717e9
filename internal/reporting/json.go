package reporting

import (
	"encoding/json"
	"time"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/metrics"
)

type jsonReport struct {
	GeneratedAt    time.Time                `json:"generated_at"`
	RunID          string                   `json:"run_id,omitempty"`
	Seed           int64                    `json:"seed"`
	DurationMs     int64                    `json:"duration_ms"`
	Config         domain.OptimizerConfig   `json:"config"`
	FirstDate      string                   `json:"first_date"`
	LastDate       string                   `json:"last_date"`
	NumCycles      int                      `json:"num_cycles"`
	NumSymbols     int                      `json:"num_symbols"`
	InitialCapital float64                  `json:"initial_capital"`
	BestScore      float64                  `json:"best_score"`
	ReturnPct      float64                  `json:"return_pct"`
	BestGenome     domain.Genome            `json:"best_genome"`
	Performance    metrics.CycleMetrics     `json:"performance"`
	Cycles         []domain.CycleReport     `json:"cycles"`
	History        []domain.GenerationStats `json:"history"`
}

// RenderJSON renders report as indented JSON.
func RenderJSON(r *Report) ([]byte, error) {
	out := jsonReport{
		GeneratedAt:    r.GeneratedAt,
		RunID:          r.RunID,
		Seed:           r.Seed,
		DurationMs:     r.Duration.Milliseconds(),
		Config:         r.Config,
		FirstDate:      formatDate(r.DataSummary.FirstDate),
		LastDate:       formatDate(r.DataSummary.LastDate),
		NumCycles:      r.DataSummary.NumCycles,
		NumSymbols:     r.DataSummary.NumSymbols,
		InitialCapital: r.InitialCapital,
		BestScore:      r.BestScore,
		ReturnPct:      r.ReturnPct,
		BestGenome:     r.BestGenome,
		Performance:    r.Performance,
		Cycles:         r.Cycles,
		History:        r.History,
	}
	return json.MarshalIndent(out, "", "  ")
}
