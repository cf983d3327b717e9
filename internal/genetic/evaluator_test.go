package genetic

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-genetic-lab/internal/domain"
)

func TestEvaluator_SingleCycleTwoPots(t *testing.T) {
	series := makeSeries(t, []map[string]float64{
		{"AAAA1": 10.00, "BBBB2": 20.00},
		{"AAAA1": 12.00, "BBBB2": 18.00},
	})
	eval := NewEvaluator(series, 1000.0, 2)

	got := eval.Evaluate(domain.Genome{"AAAA1", "BBBB2"})
	assert.InDelta(t, 1050.0, got, 1e-9)

	final, cycles := eval.EvaluateDetailed(domain.Genome{"AAAA1", "BBBB2"})
	assert.Equal(t, got, final)
	require.Len(t, cycles, 1)

	c := cycles[0]
	assert.Equal(t, 1000.0, c.CapitalBefore)
	assert.InDelta(t, 1050.0, c.CapitalAfter, 1e-9)
	assert.InDelta(t, 5.0, c.ReturnPct, 1e-9)
	require.Len(t, c.Pots, 2)

	assert.Equal(t, "AAAA1", c.Pots[0].Symbol)
	assert.InDelta(t, 50.0, c.Pots[0].Quantity, 1e-9)
	assert.InDelta(t, 600.0, c.Pots[0].Proceeds, 1e-9)
	assert.InDelta(t, 20.0, c.Pots[0].ReturnPct, 1e-9)

	assert.Equal(t, "BBBB2", c.Pots[1].Symbol)
	assert.InDelta(t, 25.0, c.Pots[1].Quantity, 1e-9)
	assert.InDelta(t, 450.0, c.Pots[1].Proceeds, 1e-9)
	assert.InDelta(t, -10.0, c.Pots[1].ReturnPct, 1e-9)
}

func TestEvaluator_Compounds(t *testing.T) {
	eval := NewEvaluator(trendingSeries(t), 1000.0, 2)

	got := eval.Evaluate(domain.Genome{"WINR1", "WINR1", "WINR1", "WINR1"})
	assert.InDelta(t, 4000.0, got, 1e-9)

	got = eval.Evaluate(domain.Genome{"WINR1", "FLAT1", "FLAT1", "WINR1"})
	// Cycle 1: 500*2 + 500 = 1500. Cycle 2: 750 + 750*2 = 2250.
	assert.InDelta(t, 2250.0, got, 1e-9)
}

func TestEvaluator_UnusablePotIsLost(t *testing.T) {
	series := makeSeries(t, []map[string]float64{
		{"AAAA1": 10, "BBBB2": math.NaN(), "CCCC3": 4},
		{"AAAA1": 10, "BBBB2": 20},
	})
	eval := NewEvaluator(series, 1000.0, 2)

	tests := []struct {
		name   string
		genome domain.Genome
		want   float64
	}{
		{name: "both usable", genome: domain.Genome{"AAAA1", "AAAA1"}, want: 1000},
		{name: "NaN buy price", genome: domain.Genome{"AAAA1", "BBBB2"}, want: 500},
		{name: "missing sell price", genome: domain.Genome{"CCCC3", "AAAA1"}, want: 500},
		{name: "unknown symbol", genome: domain.Genome{"ZZZZ9", "AAAA1"}, want: 500},
		{name: "nothing usable", genome: domain.Genome{"BBBB2", "CCCC3"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, eval.Evaluate(tt.genome), 1e-9)
		})
	}

	_, cycles := eval.EvaluateDetailed(domain.Genome{"AAAA1", "BBBB2"})
	require.Len(t, cycles[0].Pots, 2)
	assert.False(t, cycles[0].Pots[0].Skipped)
	assert.True(t, cycles[0].Pots[1].Skipped)
}

func TestEvaluator_ZeroPotDegeneracy(t *testing.T) {
	series := makeSeries(t, []map[string]float64{
		{"AAAA1": 10},
		{"AAAA1": 11},
		{"BBBB2": 10},
		{"BBBB2": 11},
	})
	eval := NewEvaluator(series, 1000.0, 3)

	// BBBB2 is absent in cycle 0, AAAA1 is absent in cycle 1.
	g := domain.Genome{"BBBB2", "BBBB2", "BBBB2", "AAAA1", "AAAA1", "AAAA1"}
	assert.Equal(t, 0.0, eval.Evaluate(g))

	final, cycles := eval.EvaluateDetailed(g)
	assert.Equal(t, 0.0, final)
	require.Len(t, cycles, 2)
	assert.Equal(t, 0.0, cycles[1].CapitalBefore)
	assert.Equal(t, 0.0, cycles[1].ReturnPct)
}

func TestEvaluator_Deterministic(t *testing.T) {
	series := trendingSeries(t)
	eval := NewEvaluator(series, 1000.0, 2)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		g := RandomGenome(rng, series.Symbols(), eval.TotalGenes())

		first := eval.Evaluate(g)
		second := eval.Evaluate(g)
		detailed, _ := eval.EvaluateDetailed(g)

		assert.Equal(t, math.Float64bits(first), math.Float64bits(second))
		assert.Equal(t, math.Float64bits(first), math.Float64bits(detailed))
	}
}
