// Package main runs the ranking evaluation API server: the ClickHouse-backed
// engine behind read-only JSON endpoints, with health and Prometheus
// exposition on the same listener.
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

	"github.com/rs/zerolog"

	"ranklab/internal/api"
	"ranklab/internal/config"
	"ranklab/internal/domain"
	"ranklab/internal/engine"
	"ranklab/internal/ingest"
	"ranklab/internal/logging"
	"ranklab/internal/observability"
	"ranklab/internal/storage"
	chstore "ranklab/internal/storage/clickhouse"
	"ranklab/internal/storage/memory"
	"ranklab/internal/storage/migrations"
)

func main() {
	configPath := flag.String("config", "", "Config file path (searches default locations when empty)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse")
	eventsPath := flag.String("events", "", "JSONL impression events to preload (memory mode only)")
	catalogPath := flag.String("catalog", "", "JSONL product catalog to preload (memory mode only)")
	usersPath := flag.String("users", "", "JSONL user dimensions to preload (memory mode only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	var impressionStore storage.ImpressionStore
	if *useMemory {
		memStore := memory.NewImpressionStore()
		if *eventsPath != "" {
			if err := preload(memStore, *eventsPath, *catalogPath, *usersPath, cfg.Ingest.BatchSize, logger); err != nil {
				logger.Fatal().Err(err).Msg("preload failed")
			}
		}
		impressionStore = memStore
		logger.Info().Msg("using in-memory impression store")
	} else {
		conn, err := migrations.RunClickhouseMigrations(context.Background(), cfg.ClickHouse.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("clickhouse migrations failed")
		}
		defer conn.Close()
		impressionStore = chstore.NewImpressionStore(conn)
		logger.Info().Msg("clickhouse schema ready")
	}

	eng := engine.New(engine.Options{
		ImpressionStore:        impressionStore,
		K:                      cfg.Evaluation.K,
		Mode:                   domain.ScoreMode(cfg.Evaluation.Mode),
		DaysBack:               cfg.Evaluation.DaysBack,
		TrendDaysBack:          cfg.Evaluation.TrendDaysBack,
		MinSessions:            cfg.Evaluation.MinSessions,
		OpportunityMinSessions: cfg.Evaluation.OpportunityMinSessions,
		UpliftFactor:           cfg.Evaluation.UpliftFactor,
		Targets:                cfg.Evaluation.Targets,
		Logger:                 logger.With().Str("component", "engine").Logger(),
		Metrics:                observability.DefaultMetrics,
	})

	srv := api.NewServer(api.Options{
		Engine:       eng,
		Logger:       logger.With().Str("component", "api").Logger(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	go func() {
		addr := cfg.Server.Addr()
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	// A second signal skips the graceful drain.
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("forcing immediate exit")
		os.Exit(1)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("server stopped")
}

// preload fills the in-memory store from JSONL files so the API can be
// exercised without a warehouse. Catalog and user files are optional;
// without them enrichment falls back to unknown.
func preload(store storage.ImpressionStore, eventsPath, catalogPath, usersPath string, batchSize int, logger zerolog.Logger) error {
	loader := ingest.NewLoader(ingest.Options{
		ImpressionStore:    store,
		CatalogStore:       memory.NewCatalogStore(),
		UserDimensionStore: memory.NewUserDimensionStore(),
		BatchSize:          batchSize,
		Logger:             logger.With().Str("component", "ingest").Logger(),
	})

	ctx := context.Background()
	if catalogPath != "" {
		if err := loadFile(ctx, catalogPath, loader.LoadCatalog); err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
	}
	if usersPath != "" {
		if err := loadFile(ctx, usersPath, loader.LoadUsers); err != nil {
			return fmt.Errorf("load users: %w", err)
		}
	}
	if err := loadFile(ctx, eventsPath, loader.LoadEvents); err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	return nil
}

func loadFile(ctx context.Context, path string, load func(context.Context, io.Reader) (*ingest.Result, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = load(ctx, f)
	return err
}
