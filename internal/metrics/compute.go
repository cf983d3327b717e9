// Package metrics computes return statistics over the cycle breakdown of a plan.
package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"b3-genetic-lab/internal/domain"
)

// CycleMetrics summarizes the per-cycle returns of one allocation plan.
// Return figures are percentages, as in domain.CycleReport.ReturnPct.
type CycleMetrics struct {
	// Counts
	TotalCycles   int     `json:"total_cycles"`
	Wins          int     `json:"wins"` // cycles with return > 0
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	TotalSymbols  int     `json:"total_symbols"`   // distinct symbols held
	SymbolHitRate float64 `json:"symbol_hit_rate"` // share of symbols with at least one positive pot

	// Return distribution
	ReturnMean   float64 `json:"return_mean"`
	ReturnMedian float64 `json:"return_median"`
	ReturnP10    float64 `json:"return_p10"`
	ReturnP25    float64 `json:"return_p25"`
	ReturnP75    float64 `json:"return_p75"`
	ReturnP90    float64 `json:"return_p90"`
	ReturnMin    float64 `json:"return_min"`
	ReturnMax    float64 `json:"return_max"`
	ReturnStddev float64 `json:"return_stddev"`

	// Path-dependent
	MaxDrawdownPct       float64 `json:"max_drawdown_pct"` // worst peak-to-trough of capital, percent of peak
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// ComputeCycleMetrics calculates all metrics from a cycle breakdown.
// Cycles are ordered by Cycle before computing order-dependent metrics.
func ComputeCycleMetrics(cycles []domain.CycleReport) CycleMetrics {
	n := len(cycles)
	if n == 0 {
		return CycleMetrics{}
	}

	ordered := make([]domain.CycleReport, n)
	copy(ordered, cycles)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Cycle < ordered[j].Cycle
	})

	wins := 0
	returns := make([]float64, n)
	for i, c := range ordered {
		returns[i] = c.ReturnPct
		if c.ReturnPct > 0 {
			wins++
		}
	}

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)

	mean, stddev := stat.MeanStdDev(returns, nil)
	if n < 2 {
		stddev = 0 // sample stddev needs at least 2 cycles
	}

	totalSymbols, hitRate := computeSymbolHitRate(ordered)

	return CycleMetrics{
		TotalCycles:   n,
		Wins:          wins,
		Losses:        n - wins,
		WinRate:       computeWinRate(wins, n),
		TotalSymbols:  totalSymbols,
		SymbolHitRate: hitRate,

		ReturnMean:   mean,
		ReturnMedian: computePercentile(sorted, 0.50),
		ReturnP10:    computePercentile(sorted, 0.10),
		ReturnP25:    computePercentile(sorted, 0.25),
		ReturnP75:    computePercentile(sorted, 0.75),
		ReturnP90:    computePercentile(sorted, 0.90),
		ReturnMin:    sorted[0],
		ReturnMax:    sorted[n-1],
		ReturnStddev: stddev,

		MaxDrawdownPct:       computeMaxDrawdown(ordered),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(returns),
	}
}

// computeSymbolHitRate groups usable pots by symbol and returns
// (distinct symbols, symbols with at least one positive return / distinct symbols).
// Skipped pots count toward the symbol but never as a hit.
func computeSymbolHitRate(cycles []domain.CycleReport) (int, float64) {
	hit := make(map[string]bool)
	for _, c := range cycles {
		for _, p := range c.Pots {
			if _, seen := hit[p.Symbol]; !seen {
				hit[p.Symbol] = false
			}
			if !p.Skipped && p.ReturnPct > 0 {
				hit[p.Symbol] = true
			}
		}
	}
	if len(hit) == 0 {
		return 0, 0
	}

	hits := 0
	for _, h := range hit {
		if h {
			hits++
		}
	}
	return len(hit), float64(hits) / float64(len(hit))
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown returns the worst peak-to-trough drop of the capital
// curve as a percentage of the peak. The curve starts at the first
// CapitalBefore. Cycles must be in chronological order.
func computeMaxDrawdown(cycles []domain.CycleReport) float64 {
	if len(cycles) == 0 {
		return 0
	}

	peak := cycles[0].CapitalBefore
	maxDrawdown := 0.0
	for _, c := range cycles {
		if c.CapitalAfter > peak {
			peak = c.CapitalAfter
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - c.CapitalAfter) / peak * 100; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds longest streak of return <= 0.
func computeMaxConsecutiveLosses(returns []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, r := range returns {
		if r <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
