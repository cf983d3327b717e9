// Package orchestrator coordinates one optimization run end to end.
// It coordinates: price loading → series build → evolution → persistence
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/genetic"
	"b3-genetic-lab/internal/idhash"
	"b3-genetic-lab/internal/observability"
	"b3-genetic-lab/internal/priceseries"
	"b3-genetic-lab/internal/progress"
	"b3-genetic-lab/internal/storage"
)

// ErrNoPrices is returned when the requested window holds no price data.
var ErrNoPrices = errors.New("no prices in requested window")

// Publisher receives run lifecycle and per-generation events.
type Publisher interface {
	Publish(ev progress.Event)
}

// Orchestrator coordinates optimization runs.
// Flow: load prices → build series → evolve → persist
type Orchestrator struct {
	priceStore storage.PriceStore
	runStore   storage.RunStore
	publisher  Publisher
	metrics    *observability.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	PriceStore storage.PriceStore // required by Prepare, unused by PrepareFromPoints
	RunStore   storage.RunStore   // optional; nil skips persistence
	Publisher  Publisher          // optional
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
	Now        func() time.Time // Injectable clock
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		priceStore: opts.PriceStore,
		runStore:   opts.RunStore,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("component", "orchestrator").Logger(),
		now:        opts.Now,
	}
	if o.metrics == nil {
		o.metrics = observability.DefaultMetrics
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Request describes one optimization run.
type Request struct {
	Config domain.OptimizerConfig
	Seed   int64     // 0 picks a time-based seed
	From   time.Time // zero means earliest stored date
	To     time.Time // zero means latest stored date
}

// Job is a validated run ready to execute.
type Job struct {
	RunID     string
	Request   Request
	Seed      int64
	StartedAt time.Time

	series *priceseries.Series
}

// Series returns the price series the job evolves over.
func (j *Job) Series() *priceseries.Series {
	return j.series
}

// Run prepares and executes a run over stored prices.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*domain.RunRecord, error) {
	job, err := o.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, job)
}

// Prepare loads the price window and validates the request.
// Invalid configuration or data fails here, before any evolution.
func (o *Orchestrator) Prepare(ctx context.Context, req Request) (*Job, error) {
	if o.priceStore == nil {
		return nil, fmt.Errorf("prepare run: price store not configured")
	}

	points, err := o.loadPrices(ctx, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	if len(points) == 0 {
		return nil, ErrNoPrices
	}
	return o.PrepareFromPoints(points, req)
}

// PrepareFromPoints validates the request against in-memory points.
// Points outside [req.From, req.To] are ignored.
func (o *Orchestrator) PrepareFromPoints(points []*domain.PricePoint, req Request) (*Job, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.To.Before(req.From) {
		return nil, fmt.Errorf("window %s..%s: %w", req.From.Format(domain.DateLayout), req.To.Format(domain.DateLayout), storage.ErrInvalidInput)
	}
	points = inWindow(points, req.From, req.To)
	if len(points) == 0 {
		return nil, ErrNoPrices
	}

	series, err := priceseries.New(points)
	if err != nil {
		return nil, fmt.Errorf("build price series: %w", err)
	}

	started := o.now()
	seed := req.Seed
	if seed == 0 {
		seed = started.UnixNano()
	}

	return &Job{
		RunID:     idhash.ComputeRunID(req.Config, seed, series.FirstDate(), series.LastDate(), len(series.Symbols()), started),
		Request:   req,
		Seed:      seed,
		StartedAt: started,
		series:    series,
	}, nil
}

// Execute evolves the job, records metrics, publishes progress and persists
// the outcome when a run store is configured.
func (o *Orchestrator) Execute(ctx context.Context, job *Job) (*domain.RunRecord, error) {
	cfg := job.Request.Config
	log := o.logger.With().Str("run_id", job.RunID).Logger()

	o.metrics.ActiveRuns.Inc()
	defer o.metrics.ActiveRuns.Dec()

	log.Info().
		Int("population", cfg.PopulationSize).
		Int("generations", cfg.NumGenerations).
		Int("pots", cfg.NumPots).
		Int("cycles", job.series.NumCycles()).
		Int("symbols", len(job.series.Symbols())).
		Int64("seed", job.Seed).
		Msg("run started")
	o.publish(progress.Event{Type: progress.EventRunStarted, RunID: job.RunID})

	opt, err := genetic.NewOptimizer(job.series, cfg,
		genetic.WithSeed(job.Seed),
		genetic.WithObserver(o.observer(job.RunID, cfg.PopulationSize, log)),
	)
	if err != nil {
		return nil, o.fail(job, log, fmt.Errorf("create optimizer: %w", err))
	}

	result, err := opt.Run(ctx)
	if err != nil {
		return nil, o.fail(job, log, fmt.Errorf("optimize: %w", err))
	}

	record := o.buildRecord(job, result)

	if o.runStore != nil {
		start := time.Now()
		err := o.runStore.Insert(ctx, record)
		o.metrics.RecordDBQuery("runs", "insert_run", time.Since(start).Seconds(), err)
		if err != nil {
			return nil, o.fail(job, log, fmt.Errorf("persist run: %w", err))
		}
	}

	o.metrics.RecordRun(observability.StatusSuccess, record.Duration().Seconds(), record.FinishedAt.Unix())
	o.publish(progress.Event{Type: progress.EventRunFinished, RunID: job.RunID, BestScore: record.BestScore})
	log.Info().
		Float64("best_score", record.BestScore).
		Float64("return_pct", record.ReturnPct).
		Dur("duration", record.Duration()).
		Msg("run finished")

	return record, nil
}

func (o *Orchestrator) observer(runID string, popSize int, log zerolog.Logger) genetic.Observer {
	return func(s domain.GenerationStats) {
		o.metrics.RecordGeneration(s.Best, s.Mean, popSize, float64(s.DurationMs)/1000)
		o.publish(progress.GenerationEvent(runID, s))
		log.Debug().
			Int("generation", s.Generation).
			Float64("best", s.Best).
			Float64("mean", s.Mean).
			Msg("generation")
	}
}

func (o *Orchestrator) buildRecord(job *Job, result *genetic.Result) *domain.RunRecord {
	cfg := job.Request.Config
	return &domain.RunRecord{
		RunID:      job.RunID,
		Config:     cfg,
		Seed:       result.Seed,
		FirstDate:  job.series.FirstDate(),
		LastDate:   job.series.LastDate(),
		NumCycles:  job.series.NumCycles(),
		NumSymbols: len(job.series.Symbols()),
		BestGenome: result.BestGenome,
		BestScore:  result.BestScore,
		ReturnPct:  (result.BestScore/cfg.InitialCapital - 1) * 100,
		Cycles:     result.Cycles,
		History:    result.History,
		StartedAt:  job.StartedAt,
		FinishedAt: o.now(),
	}
}

func (o *Orchestrator) fail(job *Job, log zerolog.Logger, err error) error {
	status := observability.StatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = observability.StatusCancelled
	}
	o.metrics.RecordRun(status, o.now().Sub(job.StartedAt).Seconds(), 0)
	o.publish(progress.Event{Type: progress.EventRunFailed, RunID: job.RunID, Error: err.Error()})
	log.Error().Err(err).Str("status", status).Msg("run failed")
	return err
}

func (o *Orchestrator) loadPrices(ctx context.Context, from, to time.Time) (points []*domain.PricePoint, err error) {
	start := time.Now()
	defer func() {
		o.metrics.RecordDBQuery("prices", "load_prices", time.Since(start).Seconds(), err)
	}()

	if from.IsZero() && to.IsZero() {
		return o.priceStore.GetAll(ctx)
	}

	if from.IsZero() || to.IsZero() {
		first, last, err := o.priceStore.GetGlobalDateRange(ctx)
		if err != nil {
			return nil, err
		}
		if from.IsZero() {
			from = first
		}
		if to.IsZero() {
			to = last
		}
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: from %s after to %s", storage.ErrInvalidInput,
			from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	}
	return o.priceStore.GetByDateRange(ctx, from, to)
}

func (o *Orchestrator) publish(ev progress.Event) {
	if o.publisher != nil {
		o.publisher.Publish(ev)
	}
}

// inWindow returns the points dated within [from, to]; zero bounds are open.
func inWindow(points []*domain.PricePoint, from, to time.Time) []*domain.PricePoint {
	if from.IsZero() && to.IsZero() {
		return points
	}
	out := make([]*domain.PricePoint, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		d := domain.TruncateDate(p.Date)
		if !from.IsZero() && d.Before(domain.TruncateDate(from)) {
			continue
		}
		if !to.IsZero() && d.After(domain.TruncateDate(to)) {
			continue
		}
		out = append(out, p)
	}
	return out
}
