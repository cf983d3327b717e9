// Package verification replays persisted optimization runs.
// It re-evaluates the stored best genome against stored prices and reports
// every figure that no longer matches.
package verification

import (
	"context"
	"fmt"
	"math"

	"b3-genetic-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name, e.g. "Cycles[3].CapitalAfter"
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID         string
	Match         bool // true if all fields match
	Divergences   []FieldDivergence
	StoredScore   float64
	ReplayedScore float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []VerificationResult
}

// Verifier interface for run replay verification.
type Verifier interface {
	// VerifyRun loads the stored run, re-evaluates its best genome on the
	// same price window and compares all outcome figures.
	VerifyRun(ctx context.Context, runID string) (*VerificationResult, error)

	// VerifyAll verifies all stored runs.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareRuns compares a stored run with its replayed score and cycle
// breakdown. Uses FloatTolerance for float64 comparisons.
func CompareRuns(stored *domain.RunRecord, replayedScore float64, replayed []domain.CycleReport) []FieldDivergence {
	var divergences []FieldDivergence

	if !floatEquals(stored.BestScore, replayedScore) {
		divergences = append(divergences, FieldDivergence{
			Field:    "BestScore",
			Expected: stored.BestScore,
			Actual:   replayedScore,
		})
	}

	// Stored records always carry the cycle breakdown; older ones may not.
	if len(stored.Cycles) == 0 {
		return divergences
	}

	if len(stored.Cycles) != len(replayed) {
		return append(divergences, FieldDivergence{
			Field:    "len(Cycles)",
			Expected: len(stored.Cycles),
			Actual:   len(replayed),
		})
	}

	for i := range stored.Cycles {
		divergences = append(divergences, compareCycle(i, &stored.Cycles[i], &replayed[i])...)
	}
	return divergences
}

func compareCycle(i int, stored, replayed *domain.CycleReport) []FieldDivergence {
	var divergences []FieldDivergence
	field := func(name string) string { return fmt.Sprintf("Cycles[%d].%s", i, name) }

	if !stored.BuyDate.Equal(replayed.BuyDate) {
		divergences = append(divergences, FieldDivergence{field("BuyDate"), stored.BuyDate, replayed.BuyDate})
	}
	if !stored.SellDate.Equal(replayed.SellDate) {
		divergences = append(divergences, FieldDivergence{field("SellDate"), stored.SellDate, replayed.SellDate})
	}
	if !floatEquals(stored.CapitalBefore, replayed.CapitalBefore) {
		divergences = append(divergences, FieldDivergence{field("CapitalBefore"), stored.CapitalBefore, replayed.CapitalBefore})
	}
	if !floatEquals(stored.CapitalAfter, replayed.CapitalAfter) {
		divergences = append(divergences, FieldDivergence{field("CapitalAfter"), stored.CapitalAfter, replayed.CapitalAfter})
	}

	if len(stored.Pots) != len(replayed.Pots) {
		return append(divergences, FieldDivergence{field("len(Pots)"), len(stored.Pots), len(replayed.Pots)})
	}
	for p := range stored.Pots {
		s, r := stored.Pots[p], replayed.Pots[p]
		if s.Symbol != r.Symbol {
			divergences = append(divergences, FieldDivergence{field(fmt.Sprintf("Pots[%d].Symbol", p)), s.Symbol, r.Symbol})
		}
		if s.Skipped != r.Skipped {
			divergences = append(divergences, FieldDivergence{field(fmt.Sprintf("Pots[%d].Skipped", p)), s.Skipped, r.Skipped})
		}
		if !floatEquals(s.Proceeds, r.Proceeds) {
			divergences = append(divergences, FieldDivergence{field(fmt.Sprintf("Pots[%d].Proceeds", p)), s.Proceeds, r.Proceeds})
		}
	}
	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
