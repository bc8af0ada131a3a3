// Package pipeline sequences the research stages for one thesis: query
// generation, literature search, dedup/enrichment, relevance ranking,
// chapter-balanced selection, and ingestion with replacement.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/dedup"
	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/ingest"
	"github.com/scribenet/thesis-service/internal/litsearch"
	"github.com/scribenet/thesis-service/internal/observability"
	"github.com/scribenet/thesis-service/internal/ranking"
	"github.com/scribenet/thesis-service/internal/retry"
	"github.com/scribenet/thesis-service/internal/selection"
)

// DefaultQueryDelay is the pause between consecutive search calls.
const DefaultQueryDelay = 200 * time.Millisecond

// Progress milestones reported to the caller.
const (
	ProgressStarted  = 0
	ProgressQueries  = 10
	ProgressSearched = 30
	ProgressRanked   = 50
	ProgressSelected = 70
	ProgressDone     = 100
)

// ProgressFunc receives coarse completion percentages suitable for a caller
// polling job status. It must not block.
type ProgressFunc func(percent int)

// RecordStore is the persistence the driver needs: thesis reads, ingestion
// record reads, and result/status writes.
type RecordStore interface {
	GetThesis(ctx context.Context, id uuid.UUID) (*domain.ThesisRequest, error)
	ListIngestionRecords(ctx context.Context, id uuid.UUID) ([]domain.IngestionRecord, error)
	SaveResearchResult(ctx context.Context, id uuid.UUID, result domain.ResearchResult) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ThesisStatus) error
}

// Config holds driver tuning parameters.
type Config struct {
	// QueryDelay is the pause between search calls. Negative disables pacing.
	QueryDelay time.Duration

	// MinPerChapter is the per-chapter selection guarantee.
	MinPerChapter int

	// SearchRetry wraps each individual search call.
	SearchRetry retry.Config
}

func (c *Config) applyDefaults() {
	if c.QueryDelay == 0 {
		c.QueryDelay = DefaultQueryDelay
	}
	if c.MinPerChapter <= 0 {
		c.MinPerChapter = selection.DefaultMinPerChapter
	}
	if c.SearchRetry.MaxAttempts <= 0 {
		c.SearchRetry.MaxAttempts = 2
	}
}

// Driver runs the research pipeline end to end for one thesis.
type Driver struct {
	queries   *QueryGenerator
	searchers []litsearch.Searcher
	enricher  *dedup.Enricher
	ranker    *ranking.Ranker
	ingestor  *ingest.Orchestrator
	store     RecordStore
	metrics   *observability.Metrics
	cfg       Config
	logger    zerolog.Logger
}

// NewDriver creates a Driver.
func NewDriver(
	queries *QueryGenerator,
	searchers []litsearch.Searcher,
	enricher *dedup.Enricher,
	ranker *ranking.Ranker,
	ingestor *ingest.Orchestrator,
	store RecordStore,
	cfg Config,
	logger zerolog.Logger,
) *Driver {
	cfg.applyDefaults()
	return &Driver{
		queries:   queries,
		searchers: searchers,
		enricher:  enricher,
		ranker:    ranker,
		ingestor:  ingestor,
		store:     store,
		cfg:       cfg,
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}
}

// WithMetrics attaches stage metrics to the driver. Nil leaves recording
// disabled.
func (d *Driver) WithMetrics(m *observability.Metrics) *Driver {
	d.metrics = m
	return d
}

// Run executes the pipeline for the given thesis. Query generation is the
// only fatal stage; every later stage degrades gracefully, and candidate
// exhaustion during ingestion yields partial success rather than an error.
//
// Prior runs are resumed: existing ingestion records count toward the target,
// and a thesis that already meets it skips search and ingestion entirely.
func (d *Driver) Run(ctx context.Context, thesisID uuid.UUID, progress ProgressFunc) (*domain.ResearchResult, error) {
	if progress == nil {
		progress = func(int) {}
	}
	logger := d.logger.With().Str("thesis_id", thesisID.String()).Logger()
	progress(ProgressStarted)

	req, err := d.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, fmt.Errorf("load thesis: %w", err)
	}

	target := selection.MaxTotal(*req)

	existing, err := d.store.ListIngestionRecords(ctx, thesisID)
	if err != nil {
		return nil, fmt.Errorf("load ingestion records: %w", err)
	}

	if len(existing) >= target {
		logger.Info().Int("existing", len(existing)).Int("target", target).
			Msg("target already met by prior runs, skipping research")
		result := &domain.ResearchResult{
			TotalFound:    len(existing),
			UploadedCount: len(existing),
			FinalSources:  sourcesFromRecords(existing),
		}
		if err := d.finish(ctx, thesisID, result); err != nil {
			return nil, err
		}
		progress(ProgressDone)
		return result, nil
	}

	if err := d.store.UpdateStatus(ctx, thesisID, domain.StatusResearching); err != nil {
		return nil, fmt.Errorf("mark researching: %w", err)
	}

	chapterQueries, err := d.queries.Generate(ctx, *req)
	if err != nil {
		// The one unrecoverable stage. The thesis stays retryable.
		if stErr := d.store.UpdateStatus(ctx, thesisID, domain.StatusFailed); stErr != nil {
			logger.Error().Err(stErr).Msg("status update after query failure")
		}
		return nil, fmt.Errorf("query generation: %w", err)
	}
	if d.metrics != nil {
		n := 0
		for _, cq := range chapterQueries {
			n += len(cq.AllQueries())
		}
		d.metrics.RecordQueriesGenerated(n)
	}
	progress(ProgressQueries)

	found := d.search(ctx, chapterQueries)
	progress(ProgressSearched)
	logger.Info().Int("found", len(found)).Msg("literature search complete")

	deduped := dedup.Dedupe(found)
	totalFound := len(deduped)
	if d.metrics != nil {
		d.metrics.RecordSourceDuplicates(len(found) - totalFound)
	}

	// On resume, documents already in the retrieval store must not be
	// re-ingested, so they never enter ranking or selection.
	deduped = excludeIngested(deduped, existing)
	deduped = d.enricher.Enrich(ctx, deduped)

	ranked := d.ranker.Rank(ctx, *req, deduped)
	if d.metrics != nil {
		d.metrics.RecordSourcesRanked(len(ranked))
	}
	progress(ProgressRanked)

	selected := selection.Select(ranked, target, d.cfg.MinPerChapter)
	if d.metrics != nil {
		d.metrics.RecordSourcesSelected(len(selected))
	}
	progress(ProgressSelected)
	logger.Info().Int("deduped", len(deduped)).Int("selected", len(selected)).Int("target", target).
		Msg("selection complete")

	run, err := d.ingestor.Run(ctx, thesisID, req.RetrievalStoreID, selected, ranked, target-len(existing))
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	result := &domain.ResearchResult{
		TotalFound:    totalFound,
		UploadedCount: len(existing) + len(run.Succeeded),
		FinalSources:  append(sourcesFromRecords(existing), run.Succeeded...),
	}
	if err := d.finish(ctx, thesisID, result); err != nil {
		return nil, err
	}
	progress(ProgressDone)
	return result, nil
}

// finish persists the result and marks the thesis researched.
func (d *Driver) finish(ctx context.Context, thesisID uuid.UUID, result *domain.ResearchResult) error {
	if err := d.store.SaveResearchResult(ctx, thesisID, *result); err != nil {
		return fmt.Errorf("save research result: %w", err)
	}
	if err := d.store.UpdateStatus(ctx, thesisID, domain.StatusResearched); err != nil {
		return fmt.Errorf("mark researched: %w", err)
	}
	return nil
}

// search fans out every chapter query to every provider, strictly
// sequentially with inter-call spacing. Individual search failures yield zero
// results and never abort the run.
func (d *Driver) search(ctx context.Context, chapterQueries []domain.ChapterQuery) []domain.Source {
	var out []domain.Source
	first := true

	for _, cq := range chapterQueries {
		for _, query := range cq.AllQueries() {
			for _, searcher := range d.searchers {
				if !first && d.cfg.QueryDelay > 0 {
					select {
					case <-ctx.Done():
						return out
					case <-time.After(d.cfg.QueryDelay):
					}
				}
				first = false

				provider := string(searcher.Provider())
				if d.metrics != nil {
					d.metrics.RecordSearchStarted(provider)
				}
				start := time.Now()

				results, err := retry.Do(ctx, "search", d.cfg.SearchRetry, func(ctx context.Context) ([]domain.Source, error) {
					return searcher.Search(ctx, query)
				})
				if err != nil {
					if d.metrics != nil {
						d.metrics.RecordSearchFailed(provider, time.Since(start).Seconds())
					}
					d.logger.Warn().Err(err).
						Str("provider", provider).
						Str("query", query).
						Msg("search failed, continuing")
					continue
				}
				if d.metrics != nil {
					d.metrics.RecordSearchCompleted(provider, len(results), time.Since(start).Seconds())
					d.metrics.RecordSourcesFound(provider, len(results))
				}

				for i := range results {
					results[i].ChapterNumber = cq.ChapterNumber
					results[i].ChapterTitle = cq.ChapterTitle
				}
				out = append(out, results...)
			}
		}
	}
	return out
}

// excludeIngested drops candidates whose dedup key matches an ingestion
// record from a prior run. Records are keyed the way sources are: DOI first,
// normalized title otherwise.
func excludeIngested(sources []domain.Source, records []domain.IngestionRecord) []domain.Source {
	if len(records) == 0 {
		return sources
	}
	ingested := make(map[string]bool, len(records))
	for _, r := range records {
		key := domain.Source{DOI: r.DOI, Title: r.Title}
		ingested[key.DedupKey()] = true
	}
	out := make([]domain.Source, 0, len(sources))
	for _, s := range sources {
		if !ingested[s.DedupKey()] {
			out = append(out, s)
		}
	}
	return out
}

// sourcesFromRecords reconstructs citable sources from persisted ingestion
// records of prior runs.
func sourcesFromRecords(records []domain.IngestionRecord) []domain.Source {
	out := make([]domain.Source, 0, len(records))
	for _, r := range records {
		out = append(out, domain.Source{
			Title:         r.Title,
			Authors:       r.Metadata.Authors,
			Year:          r.Metadata.Year,
			DOI:           r.DOI,
			URL:           r.SourceURL,
			PDFURL:        r.SourceURL,
			Journal:       r.Metadata.Journal,
			Abstract:      r.Metadata.Abstract,
			ChapterNumber: r.Metadata.Chapter,
		})
	}
	return out
}
