// Package genetic implements the genome operators, the capital-simulation
// fitness function, and the truncation-selection evolutionary loop.
package genetic

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/priceseries"
)

// Observer receives statistics once per generation, after scoring.
type Observer func(domain.GenerationStats)

// Result is the outcome of an optimization run.
type Result struct {
	BestGenome domain.Genome
	BestScore  float64
	Cycles     []domain.CycleReport    // detailed breakdown of BestGenome
	History    []domain.GenerationStats // one entry per evolved generation
	Seed       int64
}

// Optimizer evolves a fixed-size population of genomes.
// An Optimizer is not safe for concurrent use; run independent trials with separate instances.
type Optimizer struct {
	cfg        domain.OptimizerConfig
	series     *priceseries.Series
	eval       *Evaluator
	symbols    []string
	totalGenes int

	seed     int64
	rng      *rand.Rand
	observer Observer
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithSeed seeds the random source for a reproducible run.
func WithSeed(seed int64) Option {
	return func(o *Optimizer) {
		o.seed = seed
		o.rng = rand.New(rand.NewSource(seed))
	}
}

// WithObserver registers a per-generation progress hook.
func WithObserver(fn Observer) Option {
	return func(o *Optimizer) {
		o.observer = fn
	}
}

// NewOptimizer validates cfg against series and prepares a run.
// Returns an error wrapping domain.ErrInvalidConfig or priceseries.ErrInvalidSeries.
func NewOptimizer(series *priceseries.Series, cfg domain.OptimizerConfig, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if series == nil {
		return nil, priceseries.ErrEmptySeries
	}
	symbols := series.Symbols()
	if len(symbols) == 0 {
		return nil, priceseries.ErrNoSymbols
	}
	if series.NumCycles() == 0 {
		return nil, priceseries.ErrTooFewDates
	}

	o := &Optimizer{
		cfg:        cfg,
		series:     series,
		eval:       NewEvaluator(series, cfg.InitialCapital, cfg.NumPots),
		symbols:    symbols,
		totalGenes: series.NumCycles() * cfg.NumPots,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		WithSeed(time.Now().UnixNano())(o)
	}

	return o, nil
}

// Evaluator returns the fitness evaluator bound to this run.
func (o *Optimizer) Evaluator() *Evaluator {
	return o.eval
}

// TotalGenes returns num_cycles * num_pots.
func (o *Optimizer) TotalGenes() int {
	return o.totalGenes
}

// Run executes Initialize, NumGenerations rounds of Evolve, and Finalize.
// Cancellation is checked between generations and during scoring; a cancelled
// run returns ctx.Err().
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	popSize := o.cfg.PopulationSize

	population := make([]domain.Genome, popSize)
	for i := range population {
		population[i] = RandomGenome(o.rng, o.symbols, o.totalGenes)
	}

	scores := make([]float64, popSize)
	history := make([]domain.GenerationStats, 0, o.cfg.NumGenerations)

	for gen := 0; gen < o.cfg.NumGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		if err := o.score(ctx, population, scores); err != nil {
			return nil, fmt.Errorf("score generation %d: %w", gen, err)
		}

		stats := generationStats(gen, scores)
		population = o.nextGeneration(population, scores)

		stats.DurationMs = time.Since(start).Milliseconds()
		history = append(history, stats)
		if o.observer != nil {
			o.observer(stats)
		}
	}

	if err := o.score(ctx, population, scores); err != nil {
		return nil, fmt.Errorf("score final population: %w", err)
	}

	// First maximum wins ties.
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}

	bestGenome := population[best].Clone()
	_, cycles := o.eval.EvaluateDetailed(bestGenome)

	return &Result{
		BestGenome: bestGenome,
		BestScore:  scores[best],
		Cycles:     cycles,
		History:    history,
		Seed:       o.seed,
	}, nil
}

// nextGeneration keeps the top half by score and refills with children bred
// from the top quarter. The elite pool is fixed before any child is appended.
func (o *Optimizer) nextGeneration(population []domain.Genome, scores []float64) []domain.Genome {
	popSize := o.cfg.PopulationSize

	order := rankDescending(scores)

	next := make([]domain.Genome, 0, popSize)
	for _, idx := range order[:popSize/2] {
		next = append(next, population[idx])
	}

	elite := next[:popSize/4:popSize/4]
	for len(next) < popSize {
		a, b := sampleDistinctPair(o.rng, len(elite))
		child := Crossover(elite[a], elite[b], RandomCut(o.rng, o.totalGenes))
		child = Mutate(o.rng, child, o.cfg.MutationRate, o.symbols)
		next = append(next, child)
	}

	return next
}

// score writes the fitness of population[i] into scores[i].
// Each goroutine owns one slot, so no locking is needed.
func (o *Optimizer) score(ctx context.Context, population []domain.Genome, scores []float64) error {
	if o.cfg.Workers <= 1 {
		for i, g := range population {
			scores[i] = o.eval.Evaluate(g)
		}
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i := range population {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = o.eval.Evaluate(population[i])
			return nil
		})
	}
	return g.Wait()
}

// rankDescending returns population indices ordered by score, best first.
// Equal scores keep their population order.
func rankDescending(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order
}
