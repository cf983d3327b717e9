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
	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/ingestion"
	"b3-genetic-lab/internal/logger"
	"b3-genetic-lab/internal/observability"
	"b3-genetic-lab/internal/storage"
	chstore "b3-genetic-lab/internal/storage/clickhouse"
	"b3-genetic-lab/internal/storage/memory"
	"b3-genetic-lab/internal/storage/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags
	csvPath := flag.String("csv", cfg.Data.CSVPath, "Price CSV file (date;symbol;close)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.Storage.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", cfg.Storage.UseMemory, "Dry run into in-memory storage")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logPretty := flag.Bool("log-pretty", cfg.LogPretty, "Human-readable console logs")
	flag.Parse()

	log := logger.Component(logger.New(logger.Config{Level: *logLevel, Pretty: *logPretty}), "ingest")

	if !*useMemory && *clickhouseDSN == "" {
		log.Fatal().Msg("--clickhouse-dsn is required (use --use-memory for a dry run)")
	}

	if *metricsAddr != "" {
		go serveMetrics(log, *metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := createPriceStore(ctx, *clickhouseDSN, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("create price store")
	}
	defer cleanup()

	src := ingestion.NewCSVFileSource(*csvPath, ingestion.CSVOptions{
		Comma:         cfg.Data.Comma(),
		SymbolPattern: cfg.Data.SymbolPattern,
	})
	manager := ingestion.NewManager(ingestion.ManagerOptions{
		Source: src,
		Store:  store,
	})

	start := time.Now()
	res, err := manager.Ingest(ctx)
	stats := src.Stats()
	observability.RecordIngest(res.Stored, stats.RejectedBySymbol, stats.RejectedByDate, stats.Malformed)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			log.Error().Msg("prices already ingested for at least one (date, symbol); batch rejected")
		}
		log.Fatal().Err(err).Str("path", *csvPath).Msg("ingestion failed")
	}

	log.Info().
		Str("path", *csvPath).
		Int("rows_read", stats.RowsRead).
		Int("rejected_symbol", stats.RejectedBySymbol).
		Int("rejected_date", stats.RejectedByDate).
		Int("malformed", stats.Malformed).
		Int("undefined_prices", stats.UndefinedPrices).
		Int("fetched", res.Fetched).
		Int("duplicates", res.Duplicates).
		Int("stored", res.Stored).
		Dur("elapsed", time.Since(start)).
		Msg("ingestion complete")

	if *useMemory {
		summarize(ctx, log, store)
	}
}

// createPriceStore opens ClickHouse (applying migrations) or an in-memory store.
func createPriceStore(ctx context.Context, clickhouseDSN string, useMemory bool) (storage.PriceStore, func(), error) {
	if useMemory {
		return memory.NewPriceStore(), func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	return chstore.NewPriceStore(conn), func() { conn.Close() }, nil
}

// summarize logs the stored date range, useful for dry runs.
func summarize(ctx context.Context, log zerolog.Logger, store storage.PriceStore) {
	from, to, err := store.GetGlobalDateRange(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("no stored prices")
		return
	}
	log.Info().
		Str("first_date", from.Format(domain.DateLayout)).
		Str("last_date", to.Format(domain.DateLayout)).
		Msg("stored window")
}

func serveMetrics(log zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	log.Info().Str("addr", addr).Msg("starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server error")
	}
}
