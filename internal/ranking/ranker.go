// Package ranking scores candidate sources for relevance to a thesis using
// an LLM, in fixed-size batches with graceful per-batch degradation.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/llm"
)

// Defaults for the ranker.
const (
	// DefaultMaxCandidates caps how many sources are sent to the LLM at all.
	DefaultMaxCandidates = 350

	// DefaultBatchSize is the number of sources scored per LLM call.
	DefaultBatchSize = 50

	// DefaultBatchDelay is the pause between consecutive LLM calls.
	DefaultBatchDelay = 500 * time.Millisecond

	// abstractSnippetLen truncates abstracts sent in the ranking prompt.
	abstractSnippetLen = 500
)

// Config holds ranker tuning parameters.
type Config struct {
	MaxCandidates int
	BatchSize     int
	BatchDelay    time.Duration
	Temperature   float64
}

func (c *Config) applyDefaults() {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	// Zero means default; a negative value disables pacing (used in tests).
	if c.BatchDelay == 0 {
		c.BatchDelay = DefaultBatchDelay
	}
}

// rankedItem is a single entry in the LLM's JSON array response. Index is
// local to the batch.
type rankedItem struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Ranker scores sources against a thesis request.
type Ranker struct {
	client llm.Client
	cfg    Config
	logger zerolog.Logger
}

// New creates a Ranker.
func New(client llm.Client, cfg Config, logger zerolog.Logger) *Ranker {
	cfg.applyDefaults()
	return &Ranker{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "ranker").Logger(),
	}
}

// Rank assigns a relevance score to every source and returns the full set
// sorted by score descending. It never fails: sources beyond the candidate
// cap get a low fixed score, and an entire failed batch falls back to a
// neutral score so one bad LLM call cannot sink the run.
//
// The candidate cap is filled by preferring sources with a PDF link, then
// higher citation counts.
func (r *Ranker) Rank(ctx context.Context, req domain.ThesisRequest, sources []domain.Source) []domain.Source {
	if len(sources) == 0 {
		return sources
	}

	out := make([]domain.Source, len(sources))
	copy(out, sources)

	ranked := out
	if len(out) > r.cfg.MaxCandidates {
		// The pre-sort exists only to pick which sources make the cap, so
		// under the cap the original order reaches the LLM untouched.
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].HasPDF() != out[j].HasPDF() {
				return out[i].HasPDF()
			}
			return out[i].CitationCount > out[j].CitationCount
		})
		ranked = out[:r.cfg.MaxCandidates]
		for i := r.cfg.MaxCandidates; i < len(out); i++ {
			out[i].RelevanceScore = domain.FallbackScoreUnranked
			out[i].Ranked = false
		}
		r.logger.Info().
			Int("total", len(out)).
			Int("capped", r.cfg.MaxCandidates).
			Msg("candidate cap exceeded, overflow gets fixed score")
	}

	for start := 0; start < len(ranked); start += r.cfg.BatchSize {
		if start > 0 && r.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				r.fillFallback(ranked[start:])
				return sortByScore(out)
			case <-time.After(r.cfg.BatchDelay):
			}
		}

		end := start + r.cfg.BatchSize
		if end > len(ranked) {
			end = len(ranked)
		}
		r.rankBatch(ctx, req, ranked[start:end], start/r.cfg.BatchSize)
	}

	return sortByScore(out)
}

// rankBatch scores one batch in place. Any failure downgrades the whole batch
// to the neutral fallback score.
func (r *Ranker) rankBatch(ctx context.Context, req domain.ThesisRequest, batch []domain.Source, batchNum int) {
	prompt := buildRankingPrompt(req, batch)

	resp, err := r.client.Complete(ctx, llm.Request{
		System:      rankingSystemPrompt,
		User:        prompt,
		Temperature: r.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		r.logger.Warn().Err(err).Int("batch", batchNum).Msg("ranking batch failed, using fallback score")
		r.fillFallback(batch)
		return
	}

	items, err := parseRankingResponse(resp.Content)
	if err != nil {
		parseErr := &domain.RankingParseError{Batch: batchNum, Cause: err}
		r.logger.Warn().Err(parseErr).Msg("ranking response unparseable, using fallback score")
		r.fillFallback(batch)
		return
	}

	scored := make([]bool, len(batch))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(batch) {
			continue
		}
		batch[item.Index].RelevanceScore = clampScore(item.RelevanceScore)
		batch[item.Index].Ranked = true
		scored[item.Index] = true
	}

	for i := range batch {
		if !scored[i] {
			batch[i].RelevanceScore = domain.FallbackScoreRankingFailed
			batch[i].Ranked = false
		}
	}
}

func (r *Ranker) fillFallback(batch []domain.Source) {
	for i := range batch {
		batch[i].RelevanceScore = domain.FallbackScoreRankingFailed
		batch[i].Ranked = false
	}
}

// parseRankingResponse extracts and decodes the JSON array of scores.
func parseRankingResponse(content string) ([]rankedItem, error) {
	raw, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	// Accept either a bare array or an object wrapping one.
	var items []rankedItem
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Scores []rankedItem `json:"scores"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("decode ranking array: %w", err)
	}
	if wrapped.Scores == nil {
		return nil, fmt.Errorf("ranking response has no scores array")
	}
	return wrapped.Scores, nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func sortByScore(sources []domain.Source) []domain.Source {
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].RelevanceScore > sources[j].RelevanceScore
	})
	return sources
}

const rankingSystemPrompt = `You are an academic literature relevance assessor. ` +
	`You score candidate sources for how useful they would be as citations in a specific thesis. ` +
	`Respond with a JSON array only, one entry per source, in this exact format: ` +
	`[{"index": 0, "relevance_score": 85}, {"index": 1, "relevance_score": 40}]. ` +
	`Scores are 0-100 where 100 means essential reading for this thesis and 0 means unrelated.`

// buildRankingPrompt lists the batch with batch-local indexes alongside the
// thesis context.
func buildRankingPrompt(req domain.ThesisRequest, batch []domain.Source) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Thesis title: %s\n", req.Title)
	fmt.Fprintf(&sb, "Field: %s\n", req.Field)
	if req.ResearchQuestion != "" {
		fmt.Fprintf(&sb, "Research question: %s\n", req.ResearchQuestion)
	}
	sb.WriteString("\nScore each of the following candidate sources for relevance to this thesis.\n\n")

	for i, s := range batch {
		fmt.Fprintf(&sb, "Source %d:\n", i)
		fmt.Fprintf(&sb, "  Title: %s\n", s.Title)
		if len(s.Authors) > 0 {
			authors := s.Authors
			if len(authors) > 3 {
				authors = authors[:3]
			}
			fmt.Fprintf(&sb, "  Authors: %s\n", strings.Join(authors, ", "))
		}
		if s.Year > 0 {
			fmt.Fprintf(&sb, "  Year: %d\n", s.Year)
		}
		if s.Journal != "" {
			fmt.Fprintf(&sb, "  Journal: %s\n", s.Journal)
		}
		if s.ChapterTitle != "" {
			fmt.Fprintf(&sb, "  Found for chapter: %s\n", s.ChapterTitle)
		}
		if s.Abstract != "" {
			fmt.Fprintf(&sb, "  Abstract: %s\n", truncate(s.Abstract, abstractSnippetLen))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
