// Package main loads JSONL exports into the warehouse: product catalog and
// user dimensions into PostgreSQL, enriched impression events into ClickHouse.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"ranklab/internal/ingest"
	"ranklab/internal/logging"
	"ranklab/internal/observability"
	"ranklab/internal/storage"
	chstore "ranklab/internal/storage/clickhouse"
	"ranklab/internal/storage/memory"
	"ranklab/internal/storage/migrations"
	pgstore "ranklab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("RANKLAB_CLICKHOUSE_DSN"), "ClickHouse connection string")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("RANKLAB_POSTGRES_DSN"), "PostgreSQL connection string")
	eventsPath := flag.String("events", "", "JSONL impression events file")
	catalogPath := flag.String("catalog", "", "JSONL product catalog file")
	usersPath := flag.String("users", "", "JSONL user dimensions file")
	batchSize := flag.Int("batch-size", 1000, "Rows per storage batch")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (validates files without a warehouse)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "console", "Log format: json or console")
	flag.Parse()

	logger := logging.New(logging.Config{Level: *logLevel, Format: *logFormat}).
		With().Str("component", "ingest").Logger()

	if *eventsPath == "" && *catalogPath == "" && *usersPath == "" {
		logger.Fatal().Msg("at least one of --events, --catalog, --users is required")
	}
	if !*useMemory && (*clickhouseDSN == "" || *postgresDSN == "") {
		logger.Fatal().Msg("--clickhouse-dsn and --postgres-dsn are required (use --use-memory to validate files without a warehouse)")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info().Str("addr", *metricsAddr).Msg("metrics server listening")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("forcing immediate exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := run(ctx, logger, *clickhouseDSN, *postgresDSN, *eventsPath, *catalogPath, *usersPath, *batchSize, *useMemory)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("ingest failed")
	}
	logger.Info().Msg("ingest complete")
}

func run(ctx context.Context, logger zerolog.Logger, clickhouseDSN, postgresDSN, eventsPath, catalogPath, usersPath string, batchSize int, useMemory bool) error {
	impressions, catalog, users, cleanup, err := createStores(ctx, clickhouseDSN, postgresDSN, useMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	loader := ingest.NewLoader(ingest.Options{
		ImpressionStore:    impressions,
		CatalogStore:       catalog,
		UserDimensionStore: users,
		BatchSize:          batchSize,
		Logger:             logger,
		Metrics:            observability.DefaultMetrics,
	})

	// Dimension tables first so event enrichment can resolve against them.
	if catalogPath != "" {
		res, err := loadFile(ctx, catalogPath, loader.LoadCatalog)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		logger.Info().
			Int("products", res.CatalogRows).
			Int("malformed", res.MalformedLines).
			Dur("took", res.Duration).
			Msg("catalog loaded")
	}
	if usersPath != "" {
		res, err := loadFile(ctx, usersPath, loader.LoadUsers)
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		logger.Info().
			Int("users", res.UserRows).
			Int("malformed", res.MalformedLines).
			Dur("took", res.Duration).
			Msg("user dimensions loaded")
	}
	if eventsPath != "" {
		res, err := loadFile(ctx, eventsPath, loader.LoadEvents)
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		logger.Info().
			Int("events", res.Events).
			Int("malformed", res.MalformedLines).
			Int("category_misses", res.CategoryMisses).
			Int("country_misses", res.CountryMisses).
			Dur("took", res.Duration).
			Msg("events loaded")
	}
	return nil
}

// createStores connects the impression, catalog and user stores, running
// schema migrations on the way in.
func createStores(ctx context.Context, clickhouseDSN, postgresDSN string, useMemory bool) (storage.ImpressionStore, storage.CatalogStore, storage.UserDimensionStore, func(), error) {
	if useMemory {
		return memory.NewImpressionStore(), memory.NewCatalogStore(), memory.NewUserDimensionStore(), func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		conn.Close()
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		conn.Close()
		return nil, nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return chstore.NewImpressionStore(conn), pgstore.NewCatalogStore(pool), pgstore.NewUserDimensionStore(pool), cleanup, nil
}

func loadFile(ctx context.Context, path string, load func(context.Context, io.Reader) (*ingest.Result, error)) (*ingest.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return load(ctx, f)
}
