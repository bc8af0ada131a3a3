package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/llm"
	"github.com/scribenet/thesis-service/internal/retry"
)

// funcClient delegates Complete to a function.
type funcClient struct {
	fn    func(req llm.Request) (*llm.Response, error)
	calls int
}

func (c *funcClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.calls++
	return c.fn(req)
}

func (c *funcClient) Provider() string { return "fake" }
func (c *funcClient) Model() string    { return "fake" }

func outlinedThesis() domain.ThesisRequest {
	return domain.ThesisRequest{
		Title:    "Urban Heat Islands",
		Field:    "Environmental Science",
		Language: "German",
		Outline: []domain.OutlineChapter{
			{Number: "1", Title: "Einleitung"},
			{Number: "2", Title: "Stand der Forschung"},
		},
	}
}

const validQueryJSON = `{"chapters": [
	{"chapterNumber": "1", "chapterTitle": "Einleitung",
	 "primary": ["städtische Wärmeinseln", "Stadtklima Messung"],
	 "secondary": ["urban heat island", "city climate measurement"]},
	{"chapterNumber": "2", "chapterTitle": "Stand der Forschung",
	 "primary": ["Wärmeinsel Literatur", "Stadtklima Modellierung"],
	 "secondary": ["heat island review", "urban climate modeling"]}
]}`

func quickRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func TestQueryGeneratorGenerate(t *testing.T) {
	t.Parallel()

	t.Run("parses per-chapter queries", func(t *testing.T) {
		t.Parallel()
		client := &funcClient{fn: func(req llm.Request) (*llm.Response, error) {
			assert.Contains(t, req.User, "Einleitung")
			assert.Contains(t, req.User, "Language: German")
			return &llm.Response{Content: validQueryJSON}, nil
		}}
		g := NewQueryGenerator(client, quickRetry(), zerolog.Nop())

		queries, err := g.Generate(context.Background(), outlinedThesis())
		require.NoError(t, err)
		require.Len(t, queries, 2)
		assert.Equal(t, "1", queries[0].ChapterNumber)
		assert.Equal(t, "städtische Wärmeinseln", queries[0].Primary[0])
		assert.Equal(t, "urban heat island", queries[0].Secondary[0])
		assert.Len(t, queries[0].AllQueries(), 4)
	})

	t.Run("markdown fenced response accepted", func(t *testing.T) {
		t.Parallel()
		client := &funcClient{fn: func(llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "```json\n" + validQueryJSON + "\n```"}, nil
		}}
		g := NewQueryGenerator(client, quickRetry(), zerolog.Nop())

		queries, err := g.Generate(context.Background(), outlinedThesis())
		require.NoError(t, err)
		assert.Len(t, queries, 2)
	})

	t.Run("retries transient failures then succeeds", func(t *testing.T) {
		t.Parallel()
		client := &funcClient{}
		client.fn = func(llm.Request) (*llm.Response, error) {
			if client.calls < 3 {
				return nil, errors.New("rate limited")
			}
			return &llm.Response{Content: validQueryJSON}, nil
		}
		g := NewQueryGenerator(client, quickRetry(), zerolog.Nop())

		queries, err := g.Generate(context.Background(), outlinedThesis())
		require.NoError(t, err)
		assert.Len(t, queries, 2)
		assert.Equal(t, 3, client.calls)
	})

	t.Run("exhausted retries are fatal", func(t *testing.T) {
		t.Parallel()
		client := &funcClient{fn: func(llm.Request) (*llm.Response, error) {
			return nil, errors.New("down")
		}}
		g := NewQueryGenerator(client, quickRetry(), zerolog.Nop())

		_, err := g.Generate(context.Background(), outlinedThesis())
		require.Error(t, err)
		assert.Equal(t, 3, client.calls)
	})

	t.Run("empty chapters is ErrNoQueries", func(t *testing.T) {
		t.Parallel()
		client := &funcClient{fn: func(llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: `{"chapters": []}`}, nil
		}}
		g := NewQueryGenerator(client, quickRetry(), zerolog.Nop())

		_, err := g.Generate(context.Background(), outlinedThesis())
		require.ErrorIs(t, err, domain.ErrNoQueries)
	})

	t.Run("thesis without outline is ErrNoQueries", func(t *testing.T) {
		t.Parallel()
		client := &funcClient{fn: func(llm.Request) (*llm.Response, error) {
			t.Fatal("must not call the LLM")
			return nil, nil
		}}
		g := NewQueryGenerator(client, quickRetry(), zerolog.Nop())

		_, err := g.Generate(context.Background(), domain.ThesisRequest{Title: "x"})
		require.ErrorIs(t, err, domain.ErrNoQueries)
	})
}

func TestParseQueryResponse(t *testing.T) {
	t.Parallel()

	t.Run("chapters without queries dropped", func(t *testing.T) {
		t.Parallel()
		queries, err := parseQueryResponse(`{"chapters": [
			{"chapterNumber": "1", "primary": ["q"], "secondary": []},
			{"chapterNumber": "2", "primary": [], "secondary": []}
		]}`)
		require.NoError(t, err)
		require.Len(t, queries, 1)
		assert.Equal(t, "1", queries[0].ChapterNumber)
	})

	t.Run("schema mismatch is a QueryParseError", func(t *testing.T) {
		t.Parallel()
		_, err := parseQueryResponse(`{"chapters": "not an array"}`)
		var parseErr *domain.QueryParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("prose only is a QueryParseError", func(t *testing.T) {
		t.Parallel()
		_, err := parseQueryResponse("I am unable to generate queries.")
		var parseErr *domain.QueryParseError
		require.ErrorAs(t, err, &parseErr)
	})
}
