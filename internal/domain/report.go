package domain

import "time"

// PotReport is the outcome of one pot within a cycle.
type PotReport struct {
	Pot       int     `json:"pot"`        // 0-based pot index
	Symbol    string  `json:"symbol"`     // symbol held by the pot
	BuyPrice  float64 `json:"buy_price"`  // close on buy day (0 when skipped)
	SellPrice float64 `json:"sell_price"` // close on sell day (0 when skipped)
	Quantity  float64 `json:"quantity"`   // pot_value / buy_price
	Proceeds  float64 `json:"proceeds"`   // quantity * sell_price
	ReturnPct float64 `json:"return_pct"` // (sell/buy - 1) * 100
	Skipped   bool    `json:"skipped"`    // no usable price on either day
}

// CycleReport is the per-cycle breakdown of a genome evaluation.
type CycleReport struct {
	Cycle         int         `json:"cycle"` // 0-based cycle index
	BuyDate       time.Time   `json:"buy_date"`
	SellDate      time.Time   `json:"sell_date"`
	CapitalBefore float64     `json:"capital_before"`
	CapitalAfter  float64     `json:"capital_after"`
	ReturnPct     float64     `json:"return_pct"` // (after/before - 1) * 100
	Pots          []PotReport `json:"pots"`
}

// GenerationStats summarizes the scored population of one generation.
type GenerationStats struct {
	Generation int     `json:"generation"` // 0-based
	Best       float64 `json:"best"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"stddev"`
	Worst      float64 `json:"worst"`
	DurationMs int64   `json:"duration_ms"`
}
