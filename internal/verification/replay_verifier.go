package verification

import (
	"context"
	"errors"
	"fmt"

	"b3-genetic-lab/internal/genetic"
	"b3-genetic-lab/internal/priceseries"
	"b3-genetic-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrGenomeMismatch is returned when the stored genome does not fit the replayed series.
	ErrGenomeMismatch = errors.New("genome length does not match price window")
)

// ReplayVerifier implements Verifier interface.
type ReplayVerifier struct {
	runStore   storage.RunStore
	priceStore storage.PriceStore
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore   storage.RunStore
	PriceStore storage.PriceStore
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runStore:   opts.RunStore,
		priceStore: opts.PriceStore,
	}
}

// VerifyRun verifies a single run by re-evaluating its best genome.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	// 1. Load stored run
	stored, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	// 2. Rebuild the price window
	points, err := v.priceStore.GetByDateRange(ctx, stored.FirstDate, stored.LastDate)
	if err != nil {
		return nil, fmt.Errorf("load prices for run %s: %w", runID, err)
	}
	series, err := priceseries.New(points)
	if err != nil {
		return nil, fmt.Errorf("rebuild series for run %s: %w", runID, err)
	}

	// 3. Replay evaluation
	eval := genetic.NewEvaluator(series, stored.Config.InitialCapital, stored.Config.NumPots)
	if len(stored.BestGenome) != eval.TotalGenes() {
		return nil, fmt.Errorf("run %s: %w (genome %d, window %d)",
			runID, ErrGenomeMismatch, len(stored.BestGenome), eval.TotalGenes())
	}
	score, cycles := eval.EvaluateDetailed(stored.BestGenome)

	// 4. Compare results
	divergences := CompareRuns(stored, score, cycles)
	if series.NumCycles() != stored.NumCycles {
		divergences = append(divergences, FieldDivergence{"NumCycles", stored.NumCycles, series.NumCycles()})
	}
	if len(series.Symbols()) != stored.NumSymbols {
		divergences = append(divergences, FieldDivergence{"NumSymbols", stored.NumSymbols, len(series.Symbols())})
	}

	return &VerificationResult{
		RunID:         runID,
		Match:         len(divergences) == 0,
		Divergences:   divergences,
		StoredScore:   stored.BestScore,
		ReplayedScore: score,
	}, nil
}

// VerifyAll verifies every stored run, newest first.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	runs, err := v.runStore.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}

	for _, run := range runs {
		result, err := v.VerifyRun(ctx, run.RunID)
		if err != nil {
			return nil, err
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

var _ Verifier = (*ReplayVerifier)(nil)
