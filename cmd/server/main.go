// Package main provides the entry point for the thesis research service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/config"
	"github.com/scribenet/thesis-service/internal/database"
	"github.com/scribenet/thesis-service/internal/dedup"
	"github.com/scribenet/thesis-service/internal/detect"
	"github.com/scribenet/thesis-service/internal/generate"
	"github.com/scribenet/thesis-service/internal/humanize"
	"github.com/scribenet/thesis-service/internal/ingest"
	"github.com/scribenet/thesis-service/internal/litsearch"
	"github.com/scribenet/thesis-service/internal/litsearch/openalex"
	"github.com/scribenet/thesis-service/internal/litsearch/semanticscholar"
	"github.com/scribenet/thesis-service/internal/litsearch/unpaywall"
	"github.com/scribenet/thesis-service/internal/llm"
	"github.com/scribenet/thesis-service/internal/observability"
	"github.com/scribenet/thesis-service/internal/pdf"
	"github.com/scribenet/thesis-service/internal/pipeline"
	"github.com/scribenet/thesis-service/internal/ranking"
	"github.com/scribenet/thesis-service/internal/repository"
	"github.com/scribenet/thesis-service/internal/retrieval"
	"github.com/scribenet/thesis-service/internal/retry"
	"github.com/scribenet/thesis-service/internal/server"
	"github.com/scribenet/thesis-service/internal/writing"
)

const metricsNamespace = "thesis_service"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Str("llm_provider", cfg.LLM.Provider).
		Msg("starting thesis research service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(metricsNamespace)
	}

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("creating migrator: %w", err)
		}
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	store := repository.NewPgRecordStore(db.Pool())

	llmClient, err := llm.NewClient(llm.FactoryConfig{
		Provider:   cfg.LLM.Provider,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Gemini: llm.GeminiConfig{
			APIKey:  cfg.LLM.Gemini.APIKey,
			Model:   cfg.LLM.Gemini.Model,
			BaseURL: cfg.LLM.Gemini.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("creating LLM client: %w", err)
	}

	// instrument wraps the shared LLM client with per-operation metrics.
	instrument := func(operation string) llm.Client {
		if metrics == nil {
			return llmClient
		}
		return llm.Instrument(llmClient, metrics, operation)
	}

	searchers := buildSearchers(cfg, logger)
	if len(searchers) == 0 {
		return errors.New("no literature search providers enabled")
	}

	resolver := unpaywall.New(unpaywall.Config{
		BaseURL:   cfg.Search.Unpaywall.BaseURL,
		Email:     cfg.Search.Unpaywall.Email,
		Timeout:   cfg.Search.Unpaywall.Timeout,
		RateLimit: cfg.Search.Unpaywall.RateLimit,
	}, logger)
	enricher := dedup.NewEnricher(resolver, logger)
	if cfg.Pipeline.EnrichDelay != 0 {
		enricher = enricher.WithDelay(cfg.Pipeline.EnrichDelay)
	}

	ranker := ranking.New(instrument("ranking"), ranking.Config{
		BatchDelay:  cfg.Pipeline.RankingBatchDelay,
		Temperature: cfg.LLM.Temperature,
	}, logger)

	queryGen := pipeline.NewQueryGenerator(instrument("query_generation"), retry.Config{}, logger)

	retrievalClient, err := retrieval.NewClient(retrieval.Config{
		BaseURL:      cfg.Retrieval.BaseURL,
		APIKey:       cfg.Retrieval.APIKey,
		Timeout:      cfg.Retrieval.Timeout,
		PollInterval: cfg.Retrieval.PollInterval,
		PollTimeout:  cfg.Retrieval.PollTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating retrieval client: %w", err)
	}

	downloader := pdf.NewDownloader(pdf.Config{})

	ingestor := ingest.New(downloader, retrievalClient, store, ingest.Config{
		AttemptDelay: cfg.Pipeline.IngestDelay,
	}, logger)
	if metrics != nil {
		ingestor = ingestor.WithMetrics(metrics)
	}

	driver := pipeline.NewDriver(queryGen, searchers, enricher, ranker, ingestor, store, pipeline.Config{
		QueryDelay:    cfg.Pipeline.SearchDelay,
		MinPerChapter: cfg.Pipeline.MinSourcesPerChapter,
	}, logger)
	if metrics != nil {
		driver = driver.WithMetrics(metrics)
	}

	gate := pipeline.NewGate(cfg.Pipeline.MaxConcurrentRuns)

	detector := detect.New(detect.Config{
		APIKey:  cfg.Detector.APIKey,
		Host:    cfg.Detector.Host,
		BaseURL: cfg.Detector.BaseURL,
		Timeout: cfg.Detector.Timeout,
	}, logger)
	humanizer := humanize.New(instrument("humanization"), detector, humanize.Config{
		TargetScore:   cfg.Detector.TargetScore,
		MaxIterations: cfg.Detector.MaxIterations,
	}, logger)
	generator := generate.New(instrument("generation"), logger)
	drafter := writing.New(generator, humanizer, logger)

	srv := server.NewServer(server.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
	}, store, driver, drafter, gate, db, metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// buildSearchers assembles the enabled literature search providers in a
// stable order.
func buildSearchers(cfg *config.Config, logger zerolog.Logger) []litsearch.Searcher {
	var searchers []litsearch.Searcher

	if cfg.Search.OpenAlex.Enabled {
		searchers = append(searchers, openalex.New(openalex.Config{
			BaseURL:    cfg.Search.OpenAlex.BaseURL,
			Email:      cfg.Search.OpenAlex.Email,
			Timeout:    cfg.Search.OpenAlex.Timeout,
			RateLimit:  cfg.Search.OpenAlex.RateLimit,
			MaxResults: cfg.Search.OpenAlex.MaxResults,
		}, logger))
	}

	if cfg.Search.SemanticScholar.Enabled {
		searchers = append(searchers, semanticscholar.New(semanticscholar.Config{
			BaseURL:    cfg.Search.SemanticScholar.BaseURL,
			APIKey:     cfg.Search.SemanticScholar.APIKey,
			Timeout:    cfg.Search.SemanticScholar.Timeout,
			RateLimit:  cfg.Search.SemanticScholar.RateLimit,
			MaxResults: cfg.Search.SemanticScholar.MaxResults,
		}, logger))
	}

	return searchers
}
