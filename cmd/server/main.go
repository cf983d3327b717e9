// Package main runs the optimization service:
// - POST /runs starts an optimization over stored prices
// - GET /runs, /runs/{id} report progress and results
// - /ws/progress streams per-generation statistics
// - /health, /status, /metrics for operations
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"b3-genetic-lab/internal/config"
	"b3-genetic-lab/internal/ingestion"
	"b3-genetic-lab/internal/logger"
	"b3-genetic-lab/internal/observability"
	"b3-genetic-lab/internal/orchestrator"
	"b3-genetic-lab/internal/progress"
	"b3-genetic-lab/internal/storage"
	chstore "b3-genetic-lab/internal/storage/clickhouse"
	"b3-genetic-lab/internal/storage/memory"
	"b3-genetic-lab/internal/storage/migrations"
	pgstore "b3-genetic-lab/internal/storage/postgres"
)

// stores holds the storage implementations used by the service.
type stores struct {
	prices storage.PriceStore
	runs   storage.RunStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags (config values as defaults)
	addr := flag.String("addr", cfg.Server.Addr, "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", cfg.Storage.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.Storage.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", cfg.Storage.UseMemory, "Use in-memory storage, preloaded from --csv")
	csvPath := flag.String("csv", cfg.Data.CSVPath, "Price CSV loaded at startup with --use-memory")
	maxRuns := flag.Int("max-concurrent-runs", cfg.Server.MaxConcurrentRuns, "Maximum optimizations running at once")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logPretty := flag.Bool("log-pretty", cfg.LogPretty, "Human-readable console logs")
	flag.Parse()

	base := logger.New(logger.Config{Level: *logLevel, Pretty: *logPretty})
	logger.SetGlobalLogger(base)
	log := logger.Component(base, "server")

	if !*useMemory && *clickhouseDSN == "" {
		log.Fatal().Msg("--clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := createStores(ctx, log, *postgresDSN, *clickhouseDSN, *useMemory, *csvPath, cfg.Data)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	metrics := observability.DefaultMetrics
	hubConfig := progress.DefaultHubConfig()
	hubConfig.OnClientsChanged = func(n int) { metrics.ProgressClients.Set(float64(n)) }
	hub := progress.NewHub(&hubConfig)
	defer hub.Close()

	orch := orchestrator.New(orchestrator.Options{
		PriceStore: st.prices,
		RunStore:   st.runs,
		Publisher:  hub,
		Metrics:    metrics,
		Logger:     base,
	})

	// Runs outlive individual requests but stop on shutdown
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	server := NewServer(runCtx, ServerOptions{
		Orchestrator:      orch,
		RunStore:          st.runs,
		Hub:               hub,
		Metrics:           observability.Handler(),
		Defaults:          cfg.Optimizer.Domain(),
		Seed:              cfg.Optimizer.Seed,
		MaxConcurrentRuns: *maxRuns,
		Logger:            base,
	})

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Msg("starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown")
	}

	cancelRuns()
	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("graceful shutdown timed out with runs still active")
	}

	log.Info().Msg("shutdown complete")
}

// createStores opens database stores, or memory stores preloaded from csvPath.
func createStores(ctx context.Context, log zerolog.Logger, postgresDSN, clickhouseDSN string, useMemory bool, csvPath string, data config.DataConfig) (*stores, func(), error) {
	if useMemory {
		prices := memory.NewPriceStore()
		if csvPath != "" {
			manager := ingestion.NewManager(ingestion.ManagerOptions{
				Source: ingestion.NewCSVFileSource(csvPath, ingestion.CSVOptions{
					Comma:         data.Comma(),
					SymbolPattern: data.SymbolPattern,
				}),
				Store: prices,
			})
			res, err := manager.Ingest(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("preload %s: %w", csvPath, err)
			}
			log.Info().Str("path", csvPath).Int("stored", res.Stored).Msg("prices preloaded")
		}
		return &stores{prices: prices, runs: memory.NewRunStore()}, func() {}, nil
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	st := &stores{prices: chstore.NewPriceStore(chConn)}
	cleanup := func() { chConn.Close() }

	if postgresDSN == "" {
		log.Warn().Msg("no --postgres-dsn; runs are kept in memory only")
		st.runs = memory.NewRunStore()
		return st, cleanup, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		chConn.Close()
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		chConn.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	st.runs = pgstore.NewRunStore(pool)

	return st, func() {
		pool.Close()
		chConn.Close()
	}, nil
}
