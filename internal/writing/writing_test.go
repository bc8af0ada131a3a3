package writing

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/generate"
	"github.com/scribenet/thesis-service/internal/humanize"
)

type stubGenerator struct {
	result *generate.Result
	err    error
}

func (s *stubGenerator) Run(_ context.Context, _ domain.ThesisRequest, _ []domain.Source) (*generate.Result, error) {
	return s.result, s.err
}

type stubHumanizer struct {
	result        *humanize.Result
	err           error
	citationsJSON string
}

func (s *stubHumanizer) Run(_ context.Context, _, citationsJSON string) (*humanize.Result, error) {
	s.citationsJSON = citationsJSON
	return s.result, s.err
}

func TestProduce(t *testing.T) {
	gen := &stubGenerator{result: &generate.Result{
		Text: "generated draft",
		Citations: []generate.Citation{
			{ID: "gray2019", Title: "Ghost Work", Year: 2019},
		},
		Validation: generate.Validation{Valid: true, WordCount: 2},
	}}
	hum := &stubHumanizer{result: &humanize.Result{
		Text:            "humanized draft",
		HumanPercentage: 85,
		Iterations:      2,
		TargetReached:   true,
	}}

	p := New(gen, hum, zerolog.Nop())
	draft, err := p.Produce(context.Background(), domain.ThesisRequest{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "humanized draft", draft.Text)
	assert.InDelta(t, 85.0, draft.HumanPercentage, 0.001)
	assert.Equal(t, 2, draft.HumanizeIterations)
	assert.True(t, draft.Validation.Valid)
	assert.Len(t, draft.Citations, 1)
	assert.Contains(t, hum.citationsJSON, "Ghost Work")
}

func TestProduce_GenerationErrorIsFatal(t *testing.T) {
	gen := &stubGenerator{err: errors.New("llm unavailable")}
	p := New(gen, &stubHumanizer{}, zerolog.Nop())

	draft, err := p.Produce(context.Background(), domain.ThesisRequest{}, nil)
	require.Error(t, err)
	assert.Nil(t, draft)
	assert.Contains(t, err.Error(), "generating draft")
}

func TestProduce_HumanizationErrorKeepsGeneratedDraft(t *testing.T) {
	gen := &stubGenerator{result: &generate.Result{
		Text:       "generated draft",
		Validation: generate.Validation{Valid: true, WordCount: 2},
	}}
	hum := &stubHumanizer{err: errors.New("rewrite failed")}

	p := New(gen, hum, zerolog.Nop())
	draft, err := p.Produce(context.Background(), domain.ThesisRequest{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "generated draft", draft.Text)
	assert.Zero(t, draft.HumanPercentage)
	assert.Zero(t, draft.HumanizeIterations)
}
