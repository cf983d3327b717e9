// Package priceseries pivots raw daily closes into the immutable
// (date × symbol) table the optimizer scores genomes against.
package priceseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"b3-genetic-lab/internal/domain"
)

// Series errors. All wrap ErrInvalidSeries.
var (
	ErrInvalidSeries = errors.New("invalid price series")
	ErrEmptySeries   = fmt.Errorf("%w: no price points", ErrInvalidSeries)
	ErrNoSymbols     = fmt.Errorf("%w: no valid symbols", ErrInvalidSeries)
	ErrTooFewDates   = fmt.Errorf("%w: at least 2 trading dates required", ErrInvalidSeries)
)

// Series is a read-only table of closing prices indexed by trading date and symbol.
// Undefined prices are stored as NaN. Safe for concurrent reads.
type Series struct {
	dates       []time.Time
	symbols     []string
	symbolIndex map[string]int
	closes      [][]float64 // [date row][symbol column]
	pairs       []domain.CyclePair
}

// New builds a Series from raw points.
// Dates are truncated to UTC midnight and sorted ascending; symbols are sorted.
// A later point for the same (date, symbol) overwrites an earlier one.
func New(points []*domain.PricePoint) (*Series, error) {
	if len(points) == 0 {
		return nil, ErrEmptySeries
	}

	dateSet := make(map[time.Time]struct{})
	symbolSet := make(map[string]struct{})
	for _, p := range points {
		if p == nil || p.Symbol == "" {
			continue
		}
		dateSet[domain.TruncateDate(p.Date)] = struct{}{}
		symbolSet[p.Symbol] = struct{}{}
	}

	if len(symbolSet) == 0 {
		return nil, ErrNoSymbols
	}
	if len(dateSet) < 2 {
		return nil, ErrTooFewDates
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	symbols := make([]string, 0, len(symbolSet))
	for s := range symbolSet {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	s := &Series{
		dates:       dates,
		symbols:     symbols,
		symbolIndex: make(map[string]int, len(symbols)),
		closes:      make([][]float64, len(dates)),
	}
	for i, sym := range symbols {
		s.symbolIndex[sym] = i
	}

	dateIndex := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		dateIndex[d] = i
		row := make([]float64, len(symbols))
		for j := range row {
			row[j] = math.NaN()
		}
		s.closes[i] = row
	}

	for _, p := range points {
		if p == nil || p.Symbol == "" {
			continue
		}
		row := dateIndex[domain.TruncateDate(p.Date)]
		col := s.symbolIndex[p.Symbol]
		if p.HasClose() {
			s.closes[row][col] = *p.Close
		} else {
			s.closes[row][col] = math.NaN()
		}
	}

	// Dates at even offsets buy, the following date sells; a trailing date is dropped.
	s.pairs = make([]domain.CyclePair, 0, len(dates)/2)
	for i := 0; i+1 < len(dates); i += 2 {
		s.pairs = append(s.pairs, domain.CyclePair{BuyDate: dates[i], SellDate: dates[i+1]})
	}

	return s, nil
}

// Dates returns the trading dates in ascending order.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// Symbols returns the valid symbols in stable (sorted) order.
func (s *Series) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// CyclePairs returns the (buy, sell) date pairs in chronological order.
func (s *Series) CyclePairs() []domain.CyclePair {
	out := make([]domain.CyclePair, len(s.pairs))
	copy(out, s.pairs)
	return out
}

// CyclePair returns the buy/sell dates of cycle c.
func (s *Series) CyclePair(c int) domain.CyclePair {
	return s.pairs[c]
}

// NumCycles returns floor(len(dates) / 2).
func (s *Series) NumCycles() int {
	return len(s.pairs)
}

// FirstDate returns the earliest trading date.
func (s *Series) FirstDate() time.Time {
	return s.dates[0]
}

// LastDate returns the latest trading date.
func (s *Series) LastDate() time.Time {
	return s.dates[len(s.dates)-1]
}

// SymbolIndex returns the column of symbol, or false if the symbol is unknown.
func (s *Series) SymbolIndex(symbol string) (int, bool) {
	i, ok := s.symbolIndex[symbol]
	return i, ok
}

// Price returns the close of symbol on date.
// Returns false when the date or symbol is absent or the price is undefined.
func (s *Series) Price(date time.Time, symbol string) (float64, bool) {
	date = domain.TruncateDate(date)
	row := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(date) })
	if row == len(s.dates) || !s.dates[row].Equal(date) {
		return 0, false
	}
	col, ok := s.symbolIndex[symbol]
	if !ok {
		return 0, false
	}
	return s.at(row, col)
}

// CyclePrices returns the buy and sell close of the symbol in column col for cycle c.
// ok is false when either price is undefined.
func (s *Series) CyclePrices(c, col int) (buy, sell float64, ok bool) {
	buy, okBuy := s.at(2*c, col)
	sell, okSell := s.at(2*c+1, col)
	if !okBuy || !okSell {
		return 0, 0, false
	}
	return buy, sell, true
}

func (s *Series) at(row, col int) (float64, bool) {
	v := s.closes[row][col]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
