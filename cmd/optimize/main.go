package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"b3-genetic-lab/internal/config"
	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/ingestion"
	"b3-genetic-lab/internal/logger"
	"b3-genetic-lab/internal/orchestrator"
	"b3-genetic-lab/internal/reporting"
	"b3-genetic-lab/internal/storage"
	chstore "b3-genetic-lab/internal/storage/clickhouse"
	"b3-genetic-lab/internal/storage/migrations"
	"b3-genetic-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags; defaults come from config so explicit flags win
	csvPath := flag.String("csv", cfg.Data.CSVPath, "Price CSV file (date;symbol;close)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.Storage.ClickhouseDSN, "Read prices from ClickHouse instead of CSV")
	postgresDSN := flag.String("postgres-dsn", cfg.Storage.PostgresDSN, "PostgreSQL DSN used by --persist")
	persist := flag.Bool("persist", false, "Persist the run record to PostgreSQL")
	fromStr := flag.String("from", "", "First date of the window (YYYY-MM-DD)")
	toStr := flag.String("to", "", "Last date of the window (YYYY-MM-DD)")
	capital := flag.Float64("capital", cfg.Optimizer.InitialCapital, "Initial capital")
	population := flag.Int("population", cfg.Optimizer.PopulationSize, "Population size (even, >= 8)")
	generations := flag.Int("generations", cfg.Optimizer.NumGenerations, "Number of generations")
	mutation := flag.Float64("mutation", cfg.Optimizer.MutationRate, "Per-gene mutation probability")
	pots := flag.Int("pots", cfg.Optimizer.NumPots, "Number of investment pots")
	workers := flag.Int("workers", cfg.Optimizer.Workers, "Parallel scoring workers (<= 1 scores sequentially)")
	seed := flag.Int64("seed", cfg.Optimizer.Seed, "Random seed (0 = time-based)")
	format := flag.String("format", "text", "Output format: text, markdown, json, csv")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logPretty := flag.Bool("log-pretty", cfg.LogPretty, "Human-readable console logs")
	flag.Parse()

	log := logger.Component(logger.New(logger.Config{Level: *logLevel, Pretty: *logPretty}), "optimize")

	if *persist && *postgresDSN == "" {
		log.Fatal().Msg("--postgres-dsn is required with --persist")
	}
	from, to, err := parseWindow(*fromStr, *toStr)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid window")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runStore storage.RunStore
	if *persist {
		pool, err := postgres.NewPool(ctx, *postgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("postgres migrations")
		}
		runStore = postgres.NewRunStore(pool)
	}

	req := orchestrator.Request{
		Config: domain.OptimizerConfig{
			InitialCapital: *capital,
			PopulationSize: *population,
			NumGenerations: *generations,
			MutationRate:   *mutation,
			NumPots:        *pots,
			Workers:        *workers,
		},
		Seed: *seed,
		From: from,
		To:   to,
	}

	var job *orchestrator.Job
	var orch *orchestrator.Orchestrator
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("clickhouse migrations")
		}
		defer conn.Close()

		orch = orchestrator.New(orchestrator.Options{
			PriceStore: chstore.NewPriceStore(conn),
			RunStore:   runStore,
			Logger:     log,
		})
		job, err = orch.Prepare(ctx, req)
		if err != nil {
			log.Fatal().Err(err).Msg("prepare run")
		}
	} else {
		points, err := loadCSV(ctx, log, *csvPath, cfg.Data)
		if err != nil {
			log.Fatal().Err(err).Str("path", *csvPath).Msg("load prices")
		}
		orch = orchestrator.New(orchestrator.Options{
			RunStore: runStore,
			Logger:   log,
		})
		job, err = orch.PrepareFromPoints(points, req)
		if err != nil {
			log.Fatal().Err(err).Msg("prepare run")
		}
	}

	run, err := orch.Execute(ctx, job)
	if err != nil {
		log.Fatal().Err(err).Str("run_id", job.RunID).Msg("optimization failed")
	}

	out, err := render(reporting.NewGenerator(nil).FromRun(run), *format)
	if err != nil {
		log.Fatal().Err(err).Msg("render report")
	}
	fmt.Print(out)
}

func loadCSV(ctx context.Context, log zerolog.Logger, path string, data config.DataConfig) ([]*domain.PricePoint, error) {
	src := ingestion.NewCSVFileSource(path, ingestion.CSVOptions{
		Comma:         data.Comma(),
		SymbolPattern: data.SymbolPattern,
	})
	points, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	stats := src.Stats()
	log.Info().
		Int("rows_read", stats.RowsRead).
		Int("rows_kept", stats.RowsKept).
		Int("rejected_symbol", stats.RejectedBySymbol).
		Int("rejected_date", stats.RejectedByDate).
		Int("malformed", stats.Malformed).
		Int("undefined_prices", stats.UndefinedPrices).
		Msg("prices loaded")
	return points, nil
}

func parseWindow(fromStr, toStr string) (from, to time.Time, err error) {
	if fromStr != "" {
		if from, err = time.Parse(domain.DateLayout, fromStr); err != nil {
			return from, to, fmt.Errorf("parse --from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = time.Parse(domain.DateLayout, toStr); err != nil {
			return from, to, fmt.Errorf("parse --to: %w", err)
		}
	}
	return from, to, nil
}

func render(r *reporting.Report, format string) (string, error) {
	switch format {
	case "text":
		return reporting.RenderText(r), nil
	case "markdown", "md":
		return reporting.RenderMarkdown(r), nil
	case "json":
		data, err := reporting.RenderJSON(r)
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case "csv":
		return reporting.RenderCSV(r.Cycles), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}
