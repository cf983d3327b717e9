package reporting

import (
	"fmt"
	"strings"
	"time"

	"b3-genetic-lab/internal/domain"
)

// maxHistoryRows bounds the convergence table; rows are sampled evenly.
const maxHistoryRows = 20

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Optimization Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: `%s` | Seed: %d | Duration: %s\n\n", r.RunID, r.Seed, r.Duration.Round(time.Millisecond)))
	}

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", r.Config.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Population Size | %d |\n", r.Config.PopulationSize))
	sb.WriteString(fmt.Sprintf("| Generations | %d |\n", r.Config.NumGenerations))
	sb.WriteString(fmt.Sprintf("| Mutation Rate | %.4f |\n", r.Config.MutationRate))
	sb.WriteString(fmt.Sprintf("| Pots | %d |\n", r.Config.NumPots))
	sb.WriteString("\n")

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| First Date | %s |\n", formatDate(r.DataSummary.FirstDate)))
	sb.WriteString(fmt.Sprintf("| Last Date | %s |\n", formatDate(r.DataSummary.LastDate)))
	sb.WriteString(fmt.Sprintf("| Cycles | %d |\n", r.DataSummary.NumCycles))
	sb.WriteString(fmt.Sprintf("| Symbols | %d |\n", r.DataSummary.NumSymbols))
	sb.WriteString("\n")

	// Outcome
	sb.WriteString("## Outcome\n\n")
	sb.WriteString(fmt.Sprintf("Best final capital: **%.2f** (%+.2f%% over %.2f)\n\n",
		r.BestScore, r.ReturnPct, r.InitialCapital))
	cs := r.CycleSummary
	sb.WriteString(fmt.Sprintf("Cycles: %d winning, %d losing, %d flat. Skipped pots: %d.\n\n",
		cs.WinningCycles, cs.LosingCycles, cs.FlatCycles, cs.SkippedPots))
	if cs.BestCycle >= 0 {
		best, worst := r.Cycles[cs.BestCycle], r.Cycles[cs.WorstCycle]
		sb.WriteString(fmt.Sprintf("Best cycle: %d (%+.2f%%). Worst cycle: %d (%+.2f%%).\n\n",
			best.Cycle+1, best.ReturnPct, worst.Cycle+1, worst.ReturnPct))
	}

	// Performance
	if pm := r.Performance; pm.TotalCycles > 0 {
		sb.WriteString("## Performance\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", pm.WinRate*100))
		sb.WriteString(fmt.Sprintf("| Mean Cycle Return | %.2f%% |\n", pm.ReturnMean))
		sb.WriteString(fmt.Sprintf("| Median Cycle Return | %.2f%% |\n", pm.ReturnMedian))
		sb.WriteString(fmt.Sprintf("| P10 / P90 | %.2f%% / %.2f%% |\n", pm.ReturnP10, pm.ReturnP90))
		sb.WriteString(fmt.Sprintf("| StdDev | %.2f |\n", pm.ReturnStddev))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", pm.MaxDrawdownPct))
		sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", pm.MaxConsecutiveLosses))
		sb.WriteString(fmt.Sprintf("| Symbol Hit Rate | %.2f%% of %d |\n", pm.SymbolHitRate*100, pm.TotalSymbols))
		sb.WriteString("\n")
	}

	// Cycles
	sb.WriteString("## Cycles\n\n")
	if len(r.Cycles) > 0 {
		sb.WriteString("| Cycle | Buy | Sell | Capital Before | Capital After | Return% | Symbols |\n")
		sb.WriteString("|-------|-----|------|----------------|---------------|---------|---------|\n")
		for _, c := range r.Cycles {
			symbols := make([]string, len(c.Pots))
			for i, p := range c.Pots {
				symbols[i] = p.Symbol
				if p.Skipped {
					symbols[i] += "*"
				}
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %.2f | %.2f | %s |\n",
				c.Cycle+1, formatDate(c.BuyDate), formatDate(c.SellDate),
				c.CapitalBefore, c.CapitalAfter, c.ReturnPct, strings.Join(symbols, " ")))
		}
		sb.WriteString("\n`*` no usable price, pot lost.\n")
	} else {
		sb.WriteString("No cycles available.\n")
	}
	sb.WriteString("\n")

	// Symbol Usage
	sb.WriteString("## Symbol Usage\n\n")
	if len(r.SymbolUsage) > 0 {
		sb.WriteString("| Symbol | Pots | Skipped | Mean Return% | Total Profit |\n")
		sb.WriteString("|--------|------|---------|--------------|--------------|\n")
		for _, u := range r.SymbolUsage {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.2f | %.2f |\n",
				u.Symbol, u.Pots, u.Skipped, u.MeanReturn, u.TotalProfit))
		}
	} else {
		sb.WriteString("No symbols used.\n")
	}
	sb.WriteString("\n")

	// Convergence
	sb.WriteString("## Convergence\n\n")
	if len(r.History) > 0 {
		sb.WriteString("| Generation | Best | Mean | StdDev | Worst |\n")
		sb.WriteString("|------------|------|------|--------|-------|\n")
		for _, h := range sampleHistory(r.History, maxHistoryRows) {
			sb.WriteString(fmt.Sprintf("| %d | %.2f | %.2f | %.2f | %.2f |\n",
				h.Generation, h.Best, h.Mean, h.StdDev, h.Worst))
		}
	} else {
		sb.WriteString("No generation history available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderRunList renders run summaries as a Markdown table.
func RenderRunList(rows []RunSummaryRow) string {
	var sb strings.Builder

	sb.WriteString("| Run | Started | Duration | Pop | Gens | Pots | Best | Return% |\n")
	sb.WriteString("|-----|---------|----------|-----|------|------|------|---------|\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %d | %.2f | %.2f |\n",
			r.RunID, r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond),
			r.PopulationSize, r.NumGenerations, r.NumPots, r.BestScore, r.ReturnPct))
	}

	return sb.String()
}

// sampleHistory keeps at most limit rows spread evenly, always including the last.
func sampleHistory(history []domain.GenerationStats, limit int) []domain.GenerationStats {
	if len(history) <= limit {
		return history
	}
	out := make([]domain.GenerationStats, 0, limit)
	step := float64(len(history)-1) / float64(limit-1)
	for i := 0; i < limit; i++ {
		out = append(out, history[int(float64(i)*step+0.5)])
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(domain.DateLayout)
}
