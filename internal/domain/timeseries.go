package domain

import (
	"math"
	"time"
)

// PricePoint represents one daily closing price for a symbol.
// Corresponds to daily_prices table in ClickHouse.
type PricePoint struct {
	Date   time.Time // trading date (UTC midnight)
	Symbol string    // instrument code, e.g. PETR4
	Close  *float64  // closing price; nil when undefined
}

// HasClose reports whether the point carries a usable closing price.
func (p *PricePoint) HasClose() bool {
	return p.Close != nil && !math.IsNaN(*p.Close)
}

// CyclePair is one buy/sell cycle: buy at BuyDate close, sell at SellDate close.
type CyclePair struct {
	BuyDate  time.Time
	SellDate time.Time
}

// DateLayout is the canonical layout for trading dates.
const DateLayout = "2006-01-02"

// TruncateDate normalizes t to UTC midnight.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
