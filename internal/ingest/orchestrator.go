// Package ingest turns a selected source list into populated retrieval store
// entries, replacing any source that fails download, validation, or upload
// with the next-best untried candidate until a target count of successful
// uploads is reached or candidates run out.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/observability"
	"github.com/scribenet/thesis-service/internal/pdf"
	"github.com/scribenet/thesis-service/internal/retrieval"
	"github.com/scribenet/thesis-service/internal/retry"
)

// Defaults for the orchestrator.
const (
	// DefaultAttemptDelay is the pause after every attempted item, to avoid
	// hammering download and upload endpoints.
	DefaultAttemptDelay = time.Second

	// MinReplacementScore is the relevance floor for replacement candidates.
	MinReplacementScore = 40.0
)

// Downloader fetches and validates a PDF by URL.
type Downloader interface {
	Download(ctx context.Context, url string) (*pdf.DownloadResult, error)
}

// Store uploads documents to the retrieval store and waits for indexing.
type Store interface {
	Upload(ctx context.Context, storeID, fileName string, content []byte, meta domain.IngestionMetadata) (*retrieval.Handle, error)
	WaitForCompletion(ctx context.Context, handle *retrieval.Handle) error
}

// Recorder persists ingestion records as they succeed.
type Recorder interface {
	AppendIngestionRecord(ctx context.Context, thesisID uuid.UUID, record domain.IngestionRecord) error
}

// RunContext is the mutable state of one orchestrator run. The queue is
// append-only: replacements are added at the end and the cursor only moves
// forward, so replacement is breadth-first and the run always terminates on a
// finite pool.
type RunContext struct {
	// Queue is the working list, seeded with the selected sources.
	Queue []domain.Source

	// Cursor indexes the next item in Queue to attempt.
	Cursor int

	// UsedKeys holds dedup keys already queued, so a replacement is never
	// re-queued after it has been tried.
	UsedKeys map[string]bool

	// Succeeded accumulates sources whose upload completed.
	Succeeded []domain.Source
}

// Config holds orchestrator tuning parameters.
type Config struct {
	// AttemptDelay is the pause after each attempted (non-skipped) item. A
	// negative value disables pacing.
	AttemptDelay time.Duration

	// Retry wraps the download/upload/poll chain per item.
	Retry retry.Config
}

func (c *Config) applyDefaults() {
	if c.AttemptDelay == 0 {
		c.AttemptDelay = DefaultAttemptDelay
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 2
	}
}

// Orchestrator runs the ingestion state machine.
type Orchestrator struct {
	downloader Downloader
	store      Store
	recorder   Recorder
	metrics    *observability.Metrics
	cfg        Config
	logger     zerolog.Logger
}

// New creates an Orchestrator.
func New(downloader Downloader, store Store, recorder Recorder, cfg Config, logger zerolog.Logger) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		downloader: downloader,
		store:      store,
		recorder:   recorder,
		cfg:        cfg,
		logger:     logger.With().Str("component", "ingest_orchestrator").Logger(),
	}
}

// WithMetrics attaches upload metrics to the orchestrator. Nil leaves
// recording disabled.
func (o *Orchestrator) WithMetrics(m *observability.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// Run ingests sources until target uploads succeed or candidates are
// exhausted. Exhaustion is partial success, not an error: downstream
// generation proceeds with whatever was actually ingested. rankedPool is the
// full scored source set searched for replacements; selected must be a subset
// of it.
func (o *Orchestrator) Run(ctx context.Context, thesisID uuid.UUID, storeID string, selected, rankedPool []domain.Source, target int) (*RunContext, error) {
	run := &RunContext{
		Queue:    append([]domain.Source(nil), selected...),
		UsedKeys: make(map[string]bool, len(selected)),
	}
	for _, s := range selected {
		run.UsedKeys[s.DedupKey()] = true
	}

	logger := o.logger.With().Str("thesis_id", thesisID.String()).Logger()
	logger.Info().Int("queued", len(run.Queue)).Int("target", target).Msg("ingestion run started")

	for run.Cursor < len(run.Queue) {
		if len(run.Succeeded) >= target {
			break
		}
		if err := ctx.Err(); err != nil {
			return run, err
		}

		item := run.Queue[run.Cursor]

		if !item.HasPDF() {
			// Nothing to download; replace without pacing.
			o.queueReplacement(run, rankedPool, item.ChapterNumber)
			run.Cursor++
			continue
		}

		if o.metrics != nil {
			o.metrics.RecordUploadStarted()
		}
		attemptStart := time.Now()

		if err := o.ingestOne(ctx, thesisID, storeID, item); err != nil {
			if o.metrics != nil {
				o.metrics.RecordUploadFailed()
			}
			logger.Warn().Err(err).Str("title", item.Title).Msg("ingestion attempt failed, replacing")
			o.queueReplacement(run, rankedPool, item.ChapterNumber)
		} else {
			if o.metrics != nil {
				o.metrics.RecordUploadCompleted(time.Since(attemptStart).Seconds())
			}
			run.Succeeded = append(run.Succeeded, item)
			logger.Debug().Str("title", item.Title).Int("succeeded", len(run.Succeeded)).Msg("source ingested")
		}

		run.Cursor++

		if len(run.Succeeded) >= target {
			break
		}

		if o.cfg.AttemptDelay > 0 {
			select {
			case <-ctx.Done():
				return run, ctx.Err()
			case <-time.After(o.cfg.AttemptDelay):
			}
		}
	}

	logger.Info().
		Int("succeeded", len(run.Succeeded)).
		Int("target", target).
		Int("attempted", run.Cursor).
		Msg("ingestion run finished")
	return run, nil
}

// ingestOne runs the download/upload/poll chain for one source, wrapped in
// the retry policy. The ingestion record is persisted immediately on success.
func (o *Orchestrator) ingestOne(ctx context.Context, thesisID uuid.UUID, storeID string, item domain.Source) error {
	fileName := FileName(item)

	record, err := retry.Do(ctx, "ingest "+fileName, o.cfg.Retry, func(ctx context.Context) (domain.IngestionRecord, error) {
		result, err := o.downloader.Download(ctx, item.PDFURL)
		if err != nil {
			return domain.IngestionRecord{}, err
		}

		meta := domain.IngestionMetadata{
			Title:    item.Title,
			Authors:  item.Authors,
			Year:     item.Year,
			Journal:  item.Journal,
			DOI:      item.DOI,
			Abstract: item.Abstract,
			Chapter:  item.ChapterNumber,
		}

		handle, err := o.store.Upload(ctx, storeID, fileName, result.Content, meta)
		if err != nil {
			return domain.IngestionRecord{}, err
		}

		if err := o.store.WaitForCompletion(ctx, handle); err != nil {
			return domain.IngestionRecord{}, err
		}

		return domain.IngestionRecord{
			DOI:        item.DOI,
			Title:      item.Title,
			FileName:   fileName,
			UploadedAt: time.Now().UTC(),
			Metadata:   meta,
			SourceURL:  item.PDFURL,
		}, nil
	})
	if err != nil {
		return err
	}

	if err := o.recorder.AppendIngestionRecord(ctx, thesisID, record); err != nil {
		return fmt.Errorf("persist ingestion record: %w", err)
	}
	return nil
}

// queueReplacement scans the full ranked pool for the best untried candidate:
// unused dedup key, a PDF link, and a relevance score at or above the floor.
// Candidates sharing the failed item's chapter are preferred; ties go to the
// higher relevance score. A found candidate is appended to the queue so it is
// tried in FIFO position, keeping replacement breadth-first.
func (o *Orchestrator) queueReplacement(run *RunContext, rankedPool []domain.Source, failedChapter string) {
	best := -1
	for i, c := range rankedPool {
		if run.UsedKeys[c.DedupKey()] || !c.HasPDF() || c.RelevanceScore < MinReplacementScore {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		if replacementLess(rankedPool[best], c, failedChapter) {
			best = i
		}
	}
	if best < 0 {
		return
	}

	candidate := rankedPool[best]
	run.UsedKeys[candidate.DedupKey()] = true
	run.Queue = append(run.Queue, candidate)
	if o.metrics != nil {
		o.metrics.RecordSourceReplaced()
	}
	o.logger.Debug().
		Str("title", candidate.Title).
		Str("chapter", candidate.ChapterNumber).
		Msg("replacement queued")
}

// replacementLess reports whether b is a better replacement than a for the
// given failed chapter.
func replacementLess(a, b domain.Source, failedChapter string) bool {
	aSame := a.ChapterNumber == failedChapter
	bSame := b.ChapterNumber == failedChapter
	if aSame != bSame {
		return bSame
	}
	return b.RelevanceScore > a.RelevanceScore
}

// FileName derives the upload file name from the source's first author and
// year, falling back to a slug of the title.
func FileName(s domain.Source) string {
	base := s.FirstAuthor()
	if base != "" && s.Year > 0 {
		base = fmt.Sprintf("%s_%d", base, s.Year)
	} else if base == "" {
		base = s.Title
	}

	slug := slugify(base)
	if slug == "" {
		slug = "source"
	}
	return slug + ".pdf"
}

func slugify(s string) string {
	var sb strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(sb.String(), "_")
}
