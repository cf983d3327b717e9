package reporting

import (
	"fmt"
	"strings"

	"b3-genetic-lab/internal/domain"
)

// RenderText renders the per-cycle detail of the best plan for a console.
func RenderText(r *Report) string {
	var sb strings.Builder

	sb.WriteString("Cycle detail:\n")
	for _, c := range r.Cycles {
		sb.WriteString(fmt.Sprintf("\nCycle %d | Buy: %s -> Sell: %s\n",
			c.Cycle+1, c.BuyDate.Format(domain.DateLayout), c.SellDate.Format(domain.DateLayout)))
		for _, p := range c.Pots {
			if p.Skipped {
				sb.WriteString(fmt.Sprintf("  Pot %d: %s | no price, pot lost\n", p.Pot+1, p.Symbol))
				continue
			}
			sb.WriteString(fmt.Sprintf("  Pot %d: %s | Buy: %.2f | Sell: %.2f | Profit: %.2f%%\n",
				p.Pot+1, p.Symbol, p.BuyPrice, p.SellPrice, p.ReturnPct))
		}
		sb.WriteString(fmt.Sprintf("  Capital before: %.2f -> after: %.2f | Cycle profit: %.2f%%\n",
			c.CapitalBefore, c.CapitalAfter, c.ReturnPct))
	}

	sb.WriteString(fmt.Sprintf("\nBest final capital: %.2f (%+.2f%%)\n", r.BestScore, r.ReturnPct))
	return sb.String()
}
