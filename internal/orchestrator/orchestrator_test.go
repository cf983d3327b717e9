package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/observability"
	"b3-genetic-lab/internal/priceseries"
	"b3-genetic-lab/internal/progress"
	"b3-genetic-lab/internal/storage"
	"b3-genetic-lab/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []progress.Event
}

func (p *recordingPublisher) Publish(ev progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

var fixedStart = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func day(i int) time.Time {
	return time.Date(2025, time.May, 1+i, 0, 0, 0, 0, time.UTC)
}

// trendingPoints has WINR1 doubling every cycle and FLAT1 flat over 4 days.
func trendingPoints() []*domain.PricePoint {
	closes := []map[string]float64{
		{"WINR1": 10, "FLAT1": 5},
		{"WINR1": 20, "FLAT1": 5},
		{"WINR1": 20, "FLAT1": 5},
		{"WINR1": 40, "FLAT1": 5},
	}
	var points []*domain.PricePoint
	for i, row := range closes {
		for sym, price := range row {
			price := price
			points = append(points, &domain.PricePoint{Date: day(i), Symbol: sym, Close: &price})
		}
	}
	return points
}

func testConfig() domain.OptimizerConfig {
	return domain.OptimizerConfig{
		InitialCapital: 1000,
		PopulationSize: 8,
		NumGenerations: 5,
		MutationRate:   0.1,
		NumPots:        2,
		Workers:        2,
	}
}

type fixture struct {
	prices    *memory.PriceStore
	runs      *memory.RunStore
	publisher *recordingPublisher
	metrics   *observability.Metrics
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		prices:    memory.NewPriceStore(),
		runs:      memory.NewRunStore(),
		publisher: &recordingPublisher{},
		metrics:   observability.NewMetrics("test", prometheus.NewRegistry()),
	}
	require.NoError(t, f.prices.InsertBulk(context.Background(), trendingPoints()))

	f.orch = New(Options{
		PriceStore: f.prices,
		RunStore:   f.runs,
		Publisher:  f.publisher,
		Metrics:    f.metrics,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return fixedStart },
	})
	return f
}

func TestOrchestrator_Run(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.orch.Run(ctx, Request{Config: testConfig(), Seed: 11})
	require.NoError(t, err)

	assert.Len(t, record.RunID, 64)
	assert.Equal(t, int64(11), record.Seed)
	assert.True(t, record.FirstDate.Equal(day(0)))
	assert.True(t, record.LastDate.Equal(day(3)))
	assert.Equal(t, 2, record.NumCycles)
	assert.Equal(t, 2, record.NumSymbols)
	assert.Len(t, record.BestGenome, 4)
	assert.Len(t, record.History, 5)
	require.Len(t, record.Cycles, 2)
	assert.InDelta(t, record.BestScore, record.Cycles[1].CapitalAfter, 1e-9)
	assert.InDelta(t, (record.BestScore/1000-1)*100, record.ReturnPct, 1e-9)

	// Persisted
	stored, err := f.runs.GetByID(ctx, record.RunID)
	require.NoError(t, err)
	assert.Equal(t, record.BestScore, stored.BestScore)

	// Progress: started, one per generation, finished
	types := f.publisher.types()
	require.Len(t, types, 7)
	assert.Equal(t, progress.EventRunStarted, types[0])
	assert.Equal(t, progress.EventGeneration, types[1])
	assert.Equal(t, progress.EventRunFinished, types[6])

	f.publisher.mu.Lock()
	gen := f.publisher.events[1]
	f.publisher.mu.Unlock()
	assert.Equal(t, record.RunID, gen.RunID)
	require.NotNil(t, gen.Stats)
	assert.Equal(t, gen.Stats.Best, gen.BestScore)

	// Metrics
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.GenerationsCompleted))
	assert.Equal(t, 40.0, testutil.ToFloat64(f.metrics.EvaluationsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues(observability.StatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveRuns))
}

func TestOrchestrator_Run_Deterministic(t *testing.T) {
	a, err := newFixture(t).orch.Run(context.Background(), Request{Config: testConfig(), Seed: 5})
	require.NoError(t, err)
	b, err := newFixture(t).orch.Run(context.Background(), Request{Config: testConfig(), Seed: 5})
	require.NoError(t, err)

	assert.Equal(t, a.RunID, b.RunID)
	assert.Equal(t, a.BestGenome, b.BestGenome)
	assert.Equal(t, a.BestScore, b.BestScore)
}

func TestOrchestrator_Run_DateWindow(t *testing.T) {
	f := newFixture(t)

	// Only the second cycle
	record, err := f.orch.Run(context.Background(), Request{Config: testConfig(), Seed: 1, From: day(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, record.NumCycles)
	assert.True(t, record.FirstDate.Equal(day(2)))

	_, err = f.orch.Run(context.Background(), Request{Config: testConfig(), From: day(3), To: day(1)})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestOrchestrator_Prepare_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := testConfig()
	bad.PopulationSize = 7
	_, err := f.orch.Prepare(ctx, Request{Config: bad})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = f.orch.Prepare(ctx, Request{Config: testConfig(), From: day(10), To: day(20)})
	assert.ErrorIs(t, err, ErrNoPrices)

	// One date is not enough for a cycle
	_, err = f.orch.Prepare(ctx, Request{Config: testConfig(), From: day(3), To: day(3)})
	assert.ErrorIs(t, err, priceseries.ErrInvalidSeries)

	_, err = New(Options{}).Prepare(ctx, Request{Config: testConfig()})
	assert.Error(t, err)

	// Nothing evolved, nothing published
	assert.Empty(t, f.publisher.types())
}

func TestOrchestrator_Execute_Cancelled(t *testing.T) {
	f := newFixture(t)

	job, err := f.orch.Prepare(context.Background(), Request{Config: testConfig(), Seed: 3})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.orch.Execute(ctx, job)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues(observability.StatusCancelled)))
	types := f.publisher.types()
	assert.Equal(t, progress.EventRunFailed, types[len(types)-1])

	_, err = f.runs.GetByID(context.Background(), job.RunID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOrchestrator_Execute_DuplicateRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Same seed and clock give the same run ID
	_, err := f.orch.Run(ctx, Request{Config: testConfig(), Seed: 9})
	require.NoError(t, err)

	_, err = f.orch.Run(ctx, Request{Config: testConfig(), Seed: 9})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues(observability.StatusFailed)))
}

func TestOrchestrator_PrepareFromPoints_WithoutStores(t *testing.T) {
	orch := New(Options{
		Metrics: observability.NewMetrics("test", prometheus.NewRegistry()),
		Logger:  zerolog.Nop(),
	})

	job, err := orch.PrepareFromPoints(trendingPoints(), Request{Config: testConfig(), Seed: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, job.Series().NumCycles())

	record, err := orch.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, job.RunID, record.RunID)
}

func TestOrchestrator_PrepareFromPoints_Window(t *testing.T) {
	orch := New(Options{
		Metrics: observability.NewMetrics("test", prometheus.NewRegistry()),
		Logger:  zerolog.Nop(),
	})

	job, err := orch.PrepareFromPoints(trendingPoints(), Request{Config: testConfig(), Seed: 2, From: day(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, job.Series().NumCycles())
	assert.Equal(t, day(2), job.Series().FirstDate())

	_, err = orch.PrepareFromPoints(trendingPoints(), Request{Config: testConfig(), From: day(10)})
	assert.ErrorIs(t, err, ErrNoPrices)

	_, err = orch.PrepareFromPoints(trendingPoints(), Request{Config: testConfig(), From: day(3), To: day(1)})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
