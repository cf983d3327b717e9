package reporting

import (
	"fmt"
	"strings"

	"b3-genetic-lab/internal/domain"
)

// RenderCSV renders the per-pot cycle breakdown as CSV string.
func RenderCSV(cycles []domain.CycleReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("cycle,buy_date,sell_date,pot,symbol,buy_price,sell_price,quantity,proceeds,")
	sb.WriteString("return_pct,skipped,capital_before,capital_after,cycle_return_pct\n")

	// Rows
	for _, c := range cycles {
		for _, p := range c.Pots {
			sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%s,%.6f,%.6f,%.6f,%.6f,%.6f,%t,%.6f,%.6f,%.6f\n",
				c.Cycle,
				c.BuyDate.Format(domain.DateLayout),
				c.SellDate.Format(domain.DateLayout),
				p.Pot,
				p.Symbol,
				p.BuyPrice,
				p.SellPrice,
				p.Quantity,
				p.Proceeds,
				p.ReturnPct,
				p.Skipped,
				c.CapitalBefore,
				c.CapitalAfter,
				c.ReturnPct,
			))
		}
	}

	return sb.String()
}

// RenderHistoryCSV renders per-generation statistics as CSV string.
func RenderHistoryCSV(history []domain.GenerationStats) string {
	var sb strings.Builder

	sb.WriteString("generation,best,mean,stddev,worst,duration_ms\n")
	for _, h := range history {
		sb.WriteString(fmt.Sprintf("%d,%.6f,%.6f,%.6f,%.6f,%d\n",
			h.Generation, h.Best, h.Mean, h.StdDev, h.Worst, h.DurationMs))
	}

	return sb.String()
}
