package genetic

import (
	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/priceseries"
)

// Evaluator simulates compounding capital for a genome against a price series.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	series         *priceseries.Series
	initialCapital float64
	numPots        int
}

// NewEvaluator creates an evaluator for the given series and allocation rule.
func NewEvaluator(series *priceseries.Series, initialCapital float64, numPots int) *Evaluator {
	return &Evaluator{
		series:         series,
		initialCapital: initialCapital,
		numPots:        numPots,
	}
}

// TotalGenes returns the genome length this evaluator expects.
func (e *Evaluator) TotalGenes() int {
	return e.series.NumCycles() * e.numPots
}

// Evaluate returns the capital after the last cycle.
// len(g) must equal TotalGenes.
func (e *Evaluator) Evaluate(g domain.Genome) float64 {
	capital, _ := e.simulate(g, false)
	return capital
}

// EvaluateDetailed runs the same simulation as Evaluate and also returns
// the per-cycle breakdown. The capital figures are identical to Evaluate.
func (e *Evaluator) EvaluateDetailed(g domain.Genome) (float64, []domain.CycleReport) {
	return e.simulate(g, true)
}

func (e *Evaluator) simulate(g domain.Genome, detailed bool) (float64, []domain.CycleReport) {
	numCycles := e.series.NumCycles()
	capital := e.initialCapital

	var reports []domain.CycleReport
	if detailed {
		reports = make([]domain.CycleReport, 0, numCycles)
	}

	for c := 0; c < numCycles; c++ {
		// Every pot gets an equal share; unusable pots lose theirs for this cycle.
		potValue := capital / float64(e.numPots)
		newCapital := 0.0

		var pots []domain.PotReport
		if detailed {
			pots = make([]domain.PotReport, 0, e.numPots)
		}

		for p, symbol := range g.Cycle(c, e.numPots) {
			buy, sell, ok := e.cyclePrices(c, symbol)
			if !ok {
				if detailed {
					pots = append(pots, domain.PotReport{Pot: p, Symbol: symbol, Skipped: true})
				}
				continue
			}

			qty := potValue / buy
			proceeds := qty * sell
			newCapital += proceeds

			if detailed {
				pots = append(pots, domain.PotReport{
					Pot:       p,
					Symbol:    symbol,
					BuyPrice:  buy,
					SellPrice: sell,
					Quantity:  qty,
					Proceeds:  proceeds,
					ReturnPct: (sell/buy - 1) * 100,
				})
			}
		}

		if detailed {
			pair := e.series.CyclePair(c)
			reports = append(reports, domain.CycleReport{
				Cycle:         c,
				BuyDate:       pair.BuyDate,
				SellDate:      pair.SellDate,
				CapitalBefore: capital,
				CapitalAfter:  newCapital,
				ReturnPct:     percentChange(capital, newCapital),
				Pots:          pots,
			})
		}

		capital = newCapital
	}

	return capital, reports
}

// cyclePrices resolves buy/sell closes for symbol in cycle c.
func (e *Evaluator) cyclePrices(c int, symbol string) (buy, sell float64, ok bool) {
	col, ok := e.series.SymbolIndex(symbol)
	if !ok {
		return 0, 0, false
	}
	return e.series.CyclePrices(c, col)
}

// percentChange returns (after/before - 1) * 100, or 0 when before is 0.
func percentChange(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return (after/before - 1) * 100
}
