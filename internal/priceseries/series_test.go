package priceseries

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-genetic-lab/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2025, time.May, d, 0, 0, 0, 0, time.UTC)
}

func point(d int, symbol string, close float64) *domain.PricePoint {
	return &domain.PricePoint{Date: day(d), Symbol: symbol, Close: &close}
}

func TestNew_CyclePairs(t *testing.T) {
	tests := []struct {
		name       string
		numDates   int
		wantCycles int
	}{
		{name: "two dates", numDates: 2, wantCycles: 1},
		{name: "odd dates drop trailing", numDates: 5, wantCycles: 2},
		{name: "twenty trading days", numDates: 20, wantCycles: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var points []*domain.PricePoint
			// Insert in reverse to check chronological ordering.
			for d := tt.numDates; d >= 1; d-- {
				points = append(points, point(d, "AAAA1", float64(d)))
			}

			s, err := New(points)
			require.NoError(t, err)

			pairs := s.CyclePairs()
			require.Len(t, pairs, tt.wantCycles)
			assert.Equal(t, tt.wantCycles, s.NumCycles())

			for i, p := range pairs {
				assert.True(t, p.BuyDate.Before(p.SellDate), "pair %d buy must precede sell", i)
				assert.Equal(t, day(2*i+1), p.BuyDate)
				assert.Equal(t, day(2*i+2), p.SellDate)
			}
		})
	}
}

func TestNew_SymbolsSortedAndDistinct(t *testing.T) {
	s, err := New([]*domain.PricePoint{
		point(1, "VALE3", 60),
		point(1, "PETR4", 30),
		point(2, "VALE3", 61),
		point(2, "PETR4", 31),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"PETR4", "VALE3"}, s.Symbols())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		points  []*domain.PricePoint
		wantErr error
	}{
		{name: "empty", points: nil, wantErr: ErrEmptySeries},
		{name: "no symbols", points: []*domain.PricePoint{{Date: day(1)}, {Date: day(2)}}, wantErr: ErrNoSymbols},
		{name: "single date", points: []*domain.PricePoint{point(1, "AAAA1", 10), point(1, "BBBB2", 20)}, wantErr: ErrTooFewDates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.points)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.Is(err, ErrInvalidSeries))
		})
	}
}

func TestSeries_PriceUndefined(t *testing.T) {
	nan := math.NaN()
	s, err := New([]*domain.PricePoint{
		point(1, "AAAA1", 10),
		{Date: day(1), Symbol: "BBBB2", Close: nil},
		point(2, "AAAA1", 12),
		{Date: day(2), Symbol: "BBBB2", Close: &nan},
		point(3, "CCCC3", 5),
	})
	require.NoError(t, err)

	got, ok := s.Price(day(1), "AAAA1")
	assert.True(t, ok)
	assert.Equal(t, 10.0, got)

	_, ok = s.Price(day(1), "BBBB2")
	assert.False(t, ok, "nil close is undefined")

	_, ok = s.Price(day(2), "BBBB2")
	assert.False(t, ok, "NaN close is undefined")

	_, ok = s.Price(day(1), "CCCC3")
	assert.False(t, ok, "symbol absent on date is undefined")

	_, ok = s.Price(day(9), "AAAA1")
	assert.False(t, ok, "unknown date is undefined")

	_, ok = s.Price(day(1), "ZZZZ9")
	assert.False(t, ok, "unknown symbol is undefined")
}

func TestSeries_CyclePrices(t *testing.T) {
	s, err := New([]*domain.PricePoint{
		point(1, "AAAA1", 10),
		point(2, "AAAA1", 12),
		point(3, "AAAA1", 13),
		point(4, "AAAA1", 11),
		point(3, "BBBB2", 20),
	})
	require.NoError(t, err)

	col, ok := s.SymbolIndex("AAAA1")
	require.True(t, ok)

	buy, sell, ok := s.CyclePrices(1, col)
	require.True(t, ok)
	assert.Equal(t, 13.0, buy)
	assert.Equal(t, 11.0, sell)

	col, _ = s.SymbolIndex("BBBB2")
	_, _, ok = s.CyclePrices(1, col)
	assert.False(t, ok, "missing sell price makes the cycle unusable")
}

func TestSeries_ReturnsCopies(t *testing.T) {
	s, err := New([]*domain.PricePoint{point(1, "AAAA1", 10), point(2, "AAAA1", 11)})
	require.NoError(t, err)

	syms := s.Symbols()
	syms[0] = "MUTATED"
	assert.Equal(t, "AAAA1", s.Symbols()[0])

	dates := s.Dates()
	dates[0] = time.Time{}
	assert.Equal(t, day(1), s.FirstDate())
	assert.Equal(t, day(2), s.LastDate())
}
