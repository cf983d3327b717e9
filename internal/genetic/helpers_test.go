package genetic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/priceseries"
)

// makeSeries builds a series from per-date closes. A missing map entry
// leaves the symbol absent on that date.
func makeSeries(t *testing.T, closes []map[string]float64) *priceseries.Series {
	t.Helper()

	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	var points []*domain.PricePoint
	for i, row := range closes {
		for sym, price := range row {
			price := price
			points = append(points, &domain.PricePoint{
				Date:   start.AddDate(0, 0, i),
				Symbol: sym,
				Close:  &price,
			})
		}
	}

	s, err := priceseries.New(points)
	require.NoError(t, err)
	return s
}

func testConfig() domain.OptimizerConfig {
	return domain.OptimizerConfig{
		InitialCapital: 1000,
		PopulationSize: 20,
		NumGenerations: 30,
		MutationRate:   0.1,
		NumPots:        2,
		Workers:        1,
	}
}

// trendingSeries has WINR1 doubling every cycle and the rest flat.
func trendingSeries(t *testing.T) *priceseries.Series {
	return makeSeries(t, []map[string]float64{
		{"WINR1": 10, "FLAT1": 5, "FLAT2": 7},
		{"WINR1": 20, "FLAT1": 5, "FLAT2": 7},
		{"WINR1": 20, "FLAT1": 5, "FLAT2": 7},
		{"WINR1": 40, "FLAT1": 5, "FLAT2": 7},
	})
}
