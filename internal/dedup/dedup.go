// Package dedup merges duplicate bibliographic records and backfills missing
// PDF links via the open-access resolver.
package dedup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/litsearch"
)

// DefaultResolveDelay is the pause between resolver calls, to stay polite to
// the upstream service.
const DefaultResolveDelay = 100 * time.Millisecond

// Dedupe merges sources sharing a dedup key (lowercase DOI, else lowercase
// title), preserving first-seen order of the surviving keys.
//
// Collision rule: the record with a PDF link wins over one without; else the
// higher citation count wins; ties keep the first seen. The survivor always
// keeps the chapter tag of the first record seen for its key.
func Dedupe(sources []domain.Source) []domain.Source {
	byKey := make(map[string]int, len(sources))
	out := make([]domain.Source, 0, len(sources))

	for _, s := range sources {
		key := s.DedupKey()
		idx, seen := byKey[key]
		if !seen {
			byKey[key] = len(out)
			out = append(out, s)
			continue
		}

		kept := &out[idx]
		if !betterThan(&s, kept) {
			continue
		}

		chapterNumber, chapterTitle := kept.ChapterNumber, kept.ChapterTitle
		*kept = s
		kept.ChapterNumber, kept.ChapterTitle = chapterNumber, chapterTitle
	}

	return out
}

// betterThan reports whether candidate should replace kept under the
// collision rule.
func betterThan(candidate, kept *domain.Source) bool {
	if candidate.HasPDF() != kept.HasPDF() {
		return candidate.HasPDF()
	}
	return candidate.CitationCount > kept.CitationCount
}

// Enricher backfills missing PDF links on deduplicated sources.
type Enricher struct {
	resolver     litsearch.PDFResolver
	resolveDelay time.Duration
	logger       zerolog.Logger
}

// NewEnricher creates an Enricher. A non-positive resolveDelay uses
// DefaultResolveDelay; tests pass a negative value via WithDelay to disable
// pacing.
func NewEnricher(resolver litsearch.PDFResolver, logger zerolog.Logger) *Enricher {
	return &Enricher{
		resolver:     resolver,
		resolveDelay: DefaultResolveDelay,
		logger:       logger.With().Str("component", "enricher").Logger(),
	}
}

// WithDelay overrides the inter-call delay. Zero disables pacing.
func (e *Enricher) WithDelay(d time.Duration) *Enricher {
	e.resolveDelay = d
	return e
}

// Enrich resolves a PDF URL for every source that lacks one but holds a DOI.
// Resolution failures leave the source unchanged and never raise. The input
// slice is modified in place and returned.
func (e *Enricher) Enrich(ctx context.Context, sources []domain.Source) []domain.Source {
	resolved := 0
	for i := range sources {
		if sources[i].HasPDF() || sources[i].DOI == "" {
			continue
		}

		if resolved > 0 && e.resolveDelay > 0 {
			select {
			case <-ctx.Done():
				return sources
			case <-time.After(e.resolveDelay):
			}
		}
		resolved++

		url, err := e.resolver.ResolvePDFURL(ctx, sources[i].DOI)
		if err != nil {
			e.logger.Debug().Err(err).Str("doi", sources[i].DOI).Msg("pdf resolution failed")
			continue
		}
		if url != "" {
			sources[i].PDFURL = url
		}
	}
	return sources
}
