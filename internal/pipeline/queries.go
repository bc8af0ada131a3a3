package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/llm"
	"github.com/scribenet/thesis-service/internal/retry"
)

// QueryGenerator produces literature search queries for every outline chapter
// in a single LLM call. This is the only pipeline stage with no fallback: no
// queries means no search terms, so exhausted retries fail the whole run.
type QueryGenerator struct {
	client   llm.Client
	retryCfg retry.Config
	logger   zerolog.Logger
}

// NewQueryGenerator creates a QueryGenerator.
func NewQueryGenerator(client llm.Client, retryCfg retry.Config, logger zerolog.Logger) *QueryGenerator {
	return &QueryGenerator{
		client:   client,
		retryCfg: retryCfg,
		logger:   logger.With().Str("component", "query_generator").Logger(),
	}
}

// queryPayload is the expected JSON schema of the LLM response.
type queryPayload struct {
	Chapters []chapterQueries `json:"chapters"`
}

type chapterQueries struct {
	ChapterNumber string   `json:"chapterNumber"`
	ChapterTitle  string   `json:"chapterTitle"`
	Primary       []string `json:"primary"`
	Secondary     []string `json:"secondary"`
}

// Generate returns two queries in the thesis language and two in English for
// every outline chapter. The LLM call and parse are retried together; a
// response that decodes but contains no usable query counts as a failure.
func (g *QueryGenerator) Generate(ctx context.Context, req domain.ThesisRequest) ([]domain.ChapterQuery, error) {
	if len(req.Outline) == 0 {
		return nil, fmt.Errorf("%w: thesis has no outline", domain.ErrNoQueries)
	}

	prompt := buildQueryPrompt(req)

	queries, err := retry.Do(ctx, "query generation", g.retryCfg, func(ctx context.Context) ([]domain.ChapterQuery, error) {
		resp, err := g.client.Complete(ctx, llm.Request{
			System:   querySystemPrompt,
			User:     prompt,
			JSONMode: true,
		})
		if err != nil {
			return nil, err
		}
		return parseQueryResponse(resp.Content)
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info().Int("chapters", len(queries)).Msg("search queries generated")
	return queries, nil
}

// parseQueryResponse decodes the LLM payload and drops chapters without any
// query. An overall empty result is ErrNoQueries.
func parseQueryResponse(content string) ([]domain.ChapterQuery, error) {
	raw, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, &domain.QueryParseError{Detail: "no JSON in response", Cause: err}
	}

	var payload queryPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, &domain.QueryParseError{Detail: "schema mismatch", Cause: err}
	}

	out := make([]domain.ChapterQuery, 0, len(payload.Chapters))
	for _, ch := range payload.Chapters {
		q := domain.ChapterQuery{
			ChapterNumber: ch.ChapterNumber,
			ChapterTitle:  ch.ChapterTitle,
			Primary:       pair(ch.Primary),
			Secondary:     pair(ch.Secondary),
		}
		if len(q.AllQueries()) > 0 {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNoQueries
	}
	return out, nil
}

func pair(qs []string) domain.LanguageQueries {
	var p domain.LanguageQueries
	for i := 0; i < len(qs) && i < 2; i++ {
		p[i] = strings.TrimSpace(qs[i])
	}
	return p
}

const querySystemPrompt = `You are an academic research librarian generating literature search queries. ` +
	`For every chapter of the given thesis outline, produce exactly two search queries in the thesis language ` +
	`and two in English. Queries must be short keyword phrases suitable for academic search engines, not questions. ` +
	`Respond with JSON only, in this exact format: ` +
	`{"chapters": [{"chapterNumber": "1", "chapterTitle": "...", "primary": ["q1", "q2"], "secondary": ["q1", "q2"]}]}`

func buildQueryPrompt(req domain.ThesisRequest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Thesis title: %s\n", req.Title)
	fmt.Fprintf(&sb, "Field: %s\n", req.Field)
	fmt.Fprintf(&sb, "Language: %s\n", req.Language)
	if req.ResearchQuestion != "" {
		fmt.Fprintf(&sb, "Research question: %s\n", req.ResearchQuestion)
	}

	sb.WriteString("\nOutline:\n")
	for _, ch := range req.Outline {
		fmt.Fprintf(&sb, "%s. %s\n", ch.Number, ch.Title)
	}

	sb.WriteString("\nGenerate search queries for every chapter listed above.")
	return sb.String()
}
