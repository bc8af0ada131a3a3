// Package writing composes draft generation and humanization into a single
// pipeline: generate the thesis text from the researched sources, then rewrite
// it until the AI-detection score clears the target.
package writing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/generate"
	"github.com/scribenet/thesis-service/internal/humanize"
)

// Generator produces a validated thesis draft from the selected sources.
type Generator interface {
	Run(ctx context.Context, thesis domain.ThesisRequest, sources []domain.Source) (*generate.Result, error)
}

// Humanizer rewrites a draft toward a human-written detection score.
type Humanizer interface {
	Run(ctx context.Context, text, citationsJSON string) (*humanize.Result, error)
}

// Draft is the combined outcome of generation and humanization.
type Draft struct {
	// Text is the final draft, post-humanization.
	Text string `json:"text"`

	// Citations are the citations extracted from the generated draft.
	Citations []generate.Citation `json:"citations"`

	// Validation is the quality verdict for the generated draft.
	Validation generate.Validation `json:"validation"`

	// HumanPercentage is the detector score of Text.
	HumanPercentage float64 `json:"humanPercentage"`

	// HumanizeIterations is the number of rewrite rounds performed.
	HumanizeIterations int `json:"humanizeIterations"`
}

// Pipeline chains the generation facade and the humanization loop.
type Pipeline struct {
	generator Generator
	humanizer Humanizer
	logger    zerolog.Logger
}

// New creates a Pipeline.
func New(generator Generator, humanizer Humanizer, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		generator: generator,
		humanizer: humanizer,
		logger:    logger.With().Str("component", "writing").Logger(),
	}
}

// Produce generates a draft for the thesis and humanizes it. Generation
// failure is fatal. Humanization failure is not: the generated draft is
// returned as-is, since a detectable draft is still a usable draft.
func (p *Pipeline) Produce(ctx context.Context, thesis domain.ThesisRequest, sources []domain.Source) (*Draft, error) {
	gen, err := p.generator.Run(ctx, thesis, sources)
	if err != nil {
		return nil, fmt.Errorf("generating draft: %w", err)
	}

	draft := &Draft{
		Text:       gen.Text,
		Citations:  gen.Citations,
		Validation: gen.Validation,
	}

	citationsJSON, err := json.Marshal(gen.Citations)
	if err != nil {
		return nil, fmt.Errorf("encoding citations: %w", err)
	}

	hum, err := p.humanizer.Run(ctx, gen.Text, string(citationsJSON))
	if err != nil {
		p.logger.Warn().Err(err).Msg("humanization failed, returning generated draft")
		return draft, nil
	}

	draft.Text = hum.Text
	draft.HumanPercentage = hum.HumanPercentage
	draft.HumanizeIterations = hum.Iterations

	p.logger.Info().
		Int("word_count", gen.Validation.WordCount).
		Float64("human_percentage", hum.HumanPercentage).
		Bool("valid", gen.Validation.Valid).
		Msg("draft produced")

	return draft, nil
}
