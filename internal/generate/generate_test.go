package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/llm"
)

// scriptedLLM returns canned responses in order, with optional per-call errors.
type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
	requests  []llm.Request
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	i := s.calls
	s.calls++
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &llm.Response{Content: s.responses[i], Model: "test-model"}, nil
}

func (s *scriptedLLM) Provider() string { return "test" }
func (s *scriptedLLM) Model() string    { return "test-model" }

func testThesis() domain.ThesisRequest {
	return domain.ThesisRequest{
		Title:            "Algorithmic Management in Platform Work",
		Field:            "sociology",
		ThesisType:       "master",
		ResearchQuestion: "How does algorithmic management shape worker autonomy?",
		CitationStyle:    "apa",
		TargetLength:     20,
		LengthUnit:       domain.LengthUnitWords,
		Outline: []domain.OutlineChapter{
			{Number: "1", Title: "Introduction"},
		},
		Language: "English",
	}
}

func TestWordTarget(t *testing.T) {
	thesis := testThesis()
	assert.Equal(t, 20, WordTarget(thesis))

	thesis.TargetLength = 80
	thesis.LengthUnit = domain.LengthUnitPages
	assert.Equal(t, 24000, WordTarget(thesis))
}

func TestRun(t *testing.T) {
	draft := strings.Repeat("word ", 19) + "(Gray, 2019)"
	client := &scriptedLLM{responses: []string{
		draft,
		`[{"id":"cite1","authors":["Gray, M."],"year":2019,"title":"Ghost Work","doi":"10.1/gw"}]`,
	}}
	g := New(client, zerolog.Nop())

	thesis := testThesis()
	thesis.MandatorySources = []string{"Ghost Work"}

	result, err := g.Run(context.Background(), thesis, []domain.Source{
		{Title: "Ghost Work", Authors: []string{"Gray, M."}, Year: 2019, DOI: "10.1/gw", ChapterNumber: "1", ChapterTitle: "Introduction"},
	})
	require.NoError(t, err)

	assert.Equal(t, draft, result.Text)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "Ghost Work", result.Citations[0].Title)
	assert.True(t, result.Validation.Valid, "errors: %v", result.Validation.Errors)
	assert.Equal(t, 21, result.Validation.WordCount)

	// The draft prompt carries the outline, question, and sources context.
	require.Len(t, client.requests, 2)
	prompt := client.requests[0].User
	assert.Contains(t, prompt, "worker autonomy")
	assert.Contains(t, prompt, "Ghost Work")
	assert.Contains(t, prompt, "for chapter 1: Introduction")
	assert.Contains(t, prompt, "Mandatory sources")
}

func TestRun_DraftErrorIsFatal(t *testing.T) {
	client := &scriptedLLM{errs: []error{errors.New("provider down")}, responses: []string{""}}
	g := New(client, zerolog.Nop())

	_, err := g.Run(context.Background(), testThesis(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft generation")
}

func TestExtractCitations(t *testing.T) {
	t.Run("parses fenced array", func(t *testing.T) {
		client := &scriptedLLM{responses: []string{
			"```json\n[{\"id\":\"cite1\",\"authors\":[\"Gray, M.\"],\"year\":2019,\"title\":\"Ghost Work\"}]\n```",
		}}
		g := New(client, zerolog.Nop())

		citations := g.ExtractCitations(context.Background(), "text", "apa")
		require.Len(t, citations, 1)
		assert.Equal(t, 2019, citations[0].Year)
	})

	t.Run("LLM error yields empty slice", func(t *testing.T) {
		client := &scriptedLLM{errs: []error{errors.New("timeout")}, responses: []string{""}}
		g := New(client, zerolog.Nop())

		citations := g.ExtractCitations(context.Background(), "text", "apa")
		assert.NotNil(t, citations)
		assert.Empty(t, citations)
	})

	t.Run("unparsable response yields empty slice", func(t *testing.T) {
		client := &scriptedLLM{responses: []string{"no json here"}}
		g := New(client, zerolog.Nop())

		citations := g.ExtractCitations(context.Background(), "text", "apa")
		assert.Empty(t, citations)
	})

	t.Run("wrong JSON shape yields empty slice", func(t *testing.T) {
		client := &scriptedLLM{responses: []string{`{"not":"an array"}`}}
		g := New(client, zerolog.Nop())

		citations := g.ExtractCitations(context.Background(), "text", "apa")
		assert.Empty(t, citations)
	})
}

func TestValidate(t *testing.T) {
	thesis := testThesis()

	t.Run("valid draft", func(t *testing.T) {
		text := strings.Repeat("word ", 20)
		v := Validate(text, thesis, nil)
		assert.True(t, v.Valid)
		assert.True(t, v.WordCountWithinLimit)
		assert.Equal(t, 20, v.WordCount)
	})

	t.Run("word count out of range", func(t *testing.T) {
		v := Validate("too short", thesis, nil)
		assert.False(t, v.Valid)
		assert.False(t, v.WordCountWithinLimit)
		require.Len(t, v.Errors, 1)
		assert.Contains(t, v.Errors[0], "word count")
	})

	t.Run("missing mandatory source", func(t *testing.T) {
		th := thesis
		th.MandatorySources = []string{"Ghost Work"}
		text := strings.Repeat("word ", 20)

		v := Validate(text, th, nil)
		assert.False(t, v.Valid)
		assert.Equal(t, []string{"Ghost Work"}, v.MissingMandatorySources)
	})

	t.Run("mandatory source matched by citation title", func(t *testing.T) {
		th := thesis
		th.MandatorySources = []string{"ghost work"}
		text := strings.Repeat("word ", 20)

		v := Validate(text, th, []Citation{{Title: "Ghost Work: The Hidden Labor", Year: 2019}})
		assert.True(t, v.Valid, "errors: %v", v.Errors)
	})

	t.Run("mandatory source matched by DOI", func(t *testing.T) {
		th := thesis
		th.MandatorySources = []string{"10.1/gw"}
		text := strings.Repeat("word ", 20)

		v := Validate(text, th, []Citation{{Title: "Other", DOI: "10.1/GW"}})
		assert.True(t, v.Valid, "errors: %v", v.Errors)
	})

	t.Run("mandatory source matched in text", func(t *testing.T) {
		th := thesis
		th.MandatorySources = []string{"Ghost Work"}
		text := strings.Repeat("word ", 18) + "see Ghost Work"

		v := Validate(text, th, nil)
		assert.True(t, v.Valid, "errors: %v", v.Errors)
	})

	t.Run("forbidden artifacts", func(t *testing.T) {
		pad := strings.Repeat("word ", 16)
		tests := []struct {
			name string
			text string
		}{
			{"markdown table", pad + "| a | b | c |"},
			{"image", pad + "![diagram](chart.png) and more"},
			{"ai self reference", pad + "As an AI I summarize this"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				v := Validate(tt.text, thesis, nil)
				assert.False(t, v.Valid)
			})
		}
	})
}

func TestSourcesContext_Empty(t *testing.T) {
	assert.Contains(t, sourcesContext(nil), "no researched sources")
}
