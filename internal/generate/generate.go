// Package generate produces the thesis draft from the researched sources:
// one LLM call for the draft, one for citation extraction, and a local
// quality validation pass.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/llm"
)

const (
	// GenerationWordsPerPage converts a page target to a word target for
	// drafting and validation.
	GenerationWordsPerPage = 300

	// WordCountTolerance is the accepted deviation from the word target.
	WordCountTolerance = 0.10

	// abstractContextLimit truncates abstracts in the sources context.
	abstractContextLimit = 300

	// draftTemperature is used for the draft call.
	draftTemperature = 0.7
)

// forbiddenPatterns flag markdown artifacts and AI self-reference phrases
// that must not appear in an academic draft.
var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`!\[.*?\]\(.*?\)`),
	regexp.MustCompile(`\|.*\|.*\|`),
	regexp.MustCompile(`(?i)<table>`),
	regexp.MustCompile(`(?i)here is a table`),
	regexp.MustCompile(`(?i)as an ai`),
	regexp.MustCompile(`(?i)i cannot create`),
}

// Citation is one extracted citation with its bibliographic metadata.
type Citation struct {
	ID      string   `json:"id"`
	Authors []string `json:"authors"`
	Year    int      `json:"year"`
	Title   string   `json:"title"`
	Journal string   `json:"journal,omitempty"`
	DOI     string   `json:"doi,omitempty"`
	Pages   string   `json:"pages,omitempty"`
	URL     string   `json:"url,omitempty"`
}

// Validation is the quality verdict for a draft.
type Validation struct {
	// Valid is true when no check failed.
	Valid bool `json:"valid"`

	// WordCount is the draft's word count.
	WordCount int `json:"wordCount"`

	// WordCountWithinLimit reports whether WordCount is within tolerance of
	// the target.
	WordCountWithinLimit bool `json:"wordCountWithinLimit"`

	// MissingMandatorySources lists mandatory sources not found in the
	// citations or the text.
	MissingMandatorySources []string `json:"missingMandatorySources,omitempty"`

	// Errors describes each failed check.
	Errors []string `json:"errors,omitempty"`
}

// Result is the outcome of one generation run.
type Result struct {
	// Text is the draft in Markdown.
	Text string `json:"text"`

	// Citations are the citations extracted from the draft.
	Citations []Citation `json:"citations"`

	// Validation is the quality verdict.
	Validation Validation `json:"validation"`
}

// Generator runs the generation facade.
type Generator struct {
	llm    llm.Client
	logger zerolog.Logger
}

// New creates a Generator.
func New(client llm.Client, logger zerolog.Logger) *Generator {
	return &Generator{
		llm:    client,
		logger: logger.With().Str("component", "generate").Logger(),
	}
}

// Run generates the draft for the given thesis using the cited sources the
// research phase produced. The draft call is fatal on error; citation
// extraction degrades to an empty list.
func (g *Generator) Run(ctx context.Context, thesis domain.ThesisRequest, sources []domain.Source) (*Result, error) {
	text, err := g.draft(ctx, thesis, sources)
	if err != nil {
		return nil, fmt.Errorf("draft generation: %w", err)
	}

	citations := g.ExtractCitations(ctx, text, thesis.CitationStyle)

	validation := Validate(text, thesis, citations)
	if !validation.Valid {
		g.logger.Warn().Strs("errors", validation.Errors).Msg("draft failed validation")
	}

	return &Result{
		Text:       text,
		Citations:  citations,
		Validation: validation,
	}, nil
}

// WordTarget returns the word target for the thesis, converting page targets
// at GenerationWordsPerPage.
func WordTarget(thesis domain.ThesisRequest) int {
	if thesis.LengthUnit == domain.LengthUnitPages {
		return thesis.TargetLength * GenerationWordsPerPage
	}
	return thesis.TargetLength
}

// draft performs the single draft completion.
func (g *Generator) draft(ctx context.Context, thesis domain.ThesisRequest, sources []domain.Source) (string, error) {
	outlineJSON, err := json.Marshal(thesis.Outline)
	if err != nil {
		return "", fmt.Errorf("encoding outline: %w", err)
	}

	target := WordTarget(thesis)
	maxWords := int(float64(target) * (1 + WordCountTolerance))

	var b strings.Builder
	fmt.Fprintf(&b, "Write the complete thesis text in Markdown, in %s.\n\n", thesis.Language)
	fmt.Fprintf(&b, "Title: %s\nField: %s\nType: %s\nCitation style: %s\n", thesis.Title, thesis.Field, thesis.ThesisType, thesis.CitationStyle)
	fmt.Fprintf(&b, "Length: %d words target, %d words absolute maximum.\n\n", target, maxWords)
	fmt.Fprintf(&b, "Research question: %s\n\nOutline:\n%s\n\n", thesis.ResearchQuestion, outlineJSON)

	if len(thesis.MandatorySources) > 0 {
		b.WriteString("Mandatory sources that must be cited:\n")
		for _, src := range thesis.MandatorySources {
			fmt.Fprintf(&b, "- %s\n", src)
		}
		b.WriteString("\n")
	}

	b.WriteString(sourcesContext(sources))

	resp, err := g.llm.Complete(ctx, llm.Request{
		System: "You are an academic writer. Cite only from the provided sources; never invent " +
			"sources. No tables, no images, no references to yourself. Start directly with the " +
			"first chapter heading.",
		User:        b.String(),
		Temperature: draftTemperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("empty draft response")
	}
	return resp.Content, nil
}

// sourcesContext renders the available sources block of the draft prompt.
func sourcesContext(sources []domain.Source) string {
	if len(sources) == 0 {
		return "Warning: no researched sources available.\n"
	}

	var b strings.Builder
	b.WriteString("Available sources (use only these):\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "\nSource %d", i+1)
		if src.ChapterTitle != "" {
			fmt.Fprintf(&b, " (for chapter %s: %s)", src.ChapterNumber, src.ChapterTitle)
		}
		b.WriteString(":\n")
		fmt.Fprintf(&b, "- Authors: %s\n", strings.Join(src.Authors, ", "))
		fmt.Fprintf(&b, "- Title: %s\n", src.Title)
		if src.Year > 0 {
			fmt.Fprintf(&b, "- Year: %d\n", src.Year)
		}
		if src.Journal != "" {
			fmt.Fprintf(&b, "- Journal: %s\n", src.Journal)
		}
		if src.DOI != "" {
			fmt.Fprintf(&b, "- DOI: %s\n", src.DOI)
		}
		if src.Abstract != "" {
			abstract := src.Abstract
			if len(abstract) > abstractContextLimit {
				abstract = abstract[:abstractContextLimit] + "..."
			}
			fmt.Fprintf(&b, "- Abstract: %s\n", abstract)
		}
	}
	return b.String()
}

// ExtractCitations asks the LLM for a JSON array of citations found in the
// draft. Any failure yields an empty slice; extraction never fails a run.
func (g *Generator) ExtractCitations(ctx context.Context, text, citationStyle string) []Citation {
	resp, err := g.llm.Complete(ctx, llm.Request{
		System: "Extract every citation actually used in the text as a JSON array of objects " +
			"with fields id, authors, year, title, journal, doi, pages, url. Only sources cited " +
			"in the text; never invent metadata. Respond with the JSON array only.",
		User:        fmt.Sprintf("Citation style: %s\n\n%s", citationStyle, text),
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("citation extraction failed")
		return []Citation{}
	}

	raw, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		g.logger.Warn().Err(err).Msg("citation extraction response unparsable")
		return []Citation{}
	}

	var citations []Citation
	if err := json.Unmarshal([]byte(raw), &citations); err != nil {
		g.logger.Warn().Err(err).Msg("citation extraction JSON invalid")
		return []Citation{}
	}
	if citations == nil {
		citations = []Citation{}
	}
	return citations
}

// Validate checks the draft against the length target, the mandatory source
// list, and the forbidden artifact patterns.
func Validate(text string, thesis domain.ThesisRequest, citations []Citation) Validation {
	wordCount := len(strings.Fields(text))
	target := WordTarget(thesis)
	maxWords := int(float64(target) * (1 + WordCountTolerance))
	minWords := int(float64(target) * (1 - WordCountTolerance))
	withinLimit := wordCount >= minWords && wordCount <= maxWords

	v := Validation{
		WordCount:            wordCount,
		WordCountWithinLimit: withinLimit,
	}

	if !withinLimit {
		v.Errors = append(v.Errors, fmt.Sprintf("word count %d outside range %d-%d", wordCount, minWords, maxWords))
	}

	cited := make([]string, 0, len(citations)*2)
	for _, c := range citations {
		if c.Title != "" {
			cited = append(cited, strings.ToLower(c.Title))
		}
		if c.DOI != "" {
			cited = append(cited, strings.ToLower(c.DOI))
		}
	}

	textLower := strings.ToLower(text)
	for _, mandatory := range thesis.MandatorySources {
		if !mandatoryCited(mandatory, cited, textLower) {
			v.MissingMandatorySources = append(v.MissingMandatorySources, mandatory)
		}
	}
	if len(v.MissingMandatorySources) > 0 {
		v.Errors = append(v.Errors, fmt.Sprintf("missing mandatory sources: %s", strings.Join(v.MissingMandatorySources, "; ")))
	}

	for _, pattern := range forbiddenPatterns {
		if pattern.MatchString(text) {
			v.Errors = append(v.Errors, fmt.Sprintf("found forbidden pattern: %s", pattern.String()))
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// mandatoryCited reports whether a mandatory source description matches any
// cited title/DOI by substring in either direction, or appears verbatim in
// the text.
func mandatoryCited(mandatory string, cited []string, textLower string) bool {
	m := strings.ToLower(mandatory)
	for _, c := range cited {
		if strings.Contains(c, m) || strings.Contains(m, c) {
			return true
		}
	}
	return strings.Contains(textLower, m)
}
