// Package humanize iteratively rewrites generated text until an AI-content
// detector scores it as sufficiently human written.
package humanize

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/detect"
	"github.com/scribenet/thesis-service/internal/llm"
)

const (
	// DefaultTargetScore is the human percentage at which rewriting stops.
	DefaultTargetScore = 70.0

	// DefaultMaxIterations caps the number of rewrite rounds.
	DefaultMaxIterations = 5

	// DefaultIterationDelay is the pause between rewrite rounds.
	DefaultIterationDelay = time.Second

	// rewriteTemperature favors varied phrasing over determinism.
	rewriteTemperature = 0.7
)

const rewriteSystemPrompt = `You are an expert academic editor. Rewrite the given text so it reads ` +
	`naturally, with varied sentence length and openings, while preserving every factual claim, ` +
	`every citation and footnote marker exactly as written, and the document structure. Keep the ` +
	`overall length within 5% of the original. Respond with the rewritten text only.`

// Config holds humanization loop tuning parameters.
type Config struct {
	// TargetScore is the human percentage that ends the loop.
	TargetScore float64

	// MaxIterations caps rewrite rounds.
	MaxIterations int

	// IterationDelay is the pause between rounds. Negative disables pacing.
	IterationDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.TargetScore <= 0 {
		c.TargetScore = DefaultTargetScore
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.IterationDelay == 0 {
		c.IterationDelay = DefaultIterationDelay
	}
}

// Step records one detector verdict during the loop.
type Step struct {
	// Iteration is 0 for the initial check, then 1..MaxIterations.
	Iteration int `json:"iteration"`

	// HumanPercentage is the detector's human score for that round's text.
	HumanPercentage float64 `json:"humanPercentage"`
}

// Result is the outcome of a humanization run.
type Result struct {
	// Text is the best text produced: the first to reach the target, or the
	// highest-scoring rewrite when the target was never reached.
	Text string `json:"text"`

	// HumanPercentage is the detector score of Text.
	HumanPercentage float64 `json:"humanPercentage"`

	// Iterations is the number of rewrite rounds performed.
	Iterations int `json:"iterations"`

	// TargetReached reports whether the target score was met.
	TargetReached bool `json:"targetReached"`

	// History lists every detector verdict in order.
	History []Step `json:"history"`
}

// Humanizer runs the detect/rewrite loop.
type Humanizer struct {
	llm      llm.Client
	detector detect.Detector
	cfg      Config
	logger   zerolog.Logger
}

// New creates a Humanizer.
func New(client llm.Client, detector detect.Detector, cfg Config, logger zerolog.Logger) *Humanizer {
	cfg.applyDefaults()
	return &Humanizer{
		llm:      client,
		detector: detector,
		cfg:      cfg,
		logger:   logger.With().Str("component", "humanize").Logger(),
	}
}

// Run executes the loop: an initial detection, then up to MaxIterations
// rewrite/detect rounds. citationsJSON carries the citation metadata the
// rewrite must preserve; pass "[]" when none is known.
func (h *Humanizer) Run(ctx context.Context, text, citationsJSON string) (*Result, error) {
	if citationsJSON == "" {
		citationsJSON = "[]"
	}

	current := text
	verdict := h.detector.Detect(ctx, current)
	history := []Step{{Iteration: 0, HumanPercentage: verdict.HumanPercentage}}
	h.logger.Info().Float64("score", verdict.HumanPercentage).Float64("target", h.cfg.TargetScore).
		Msg("initial detection")

	if verdict.HumanPercentage >= h.cfg.TargetScore {
		return &Result{
			Text:            current,
			HumanPercentage: verdict.HumanPercentage,
			Iterations:      0,
			TargetReached:   true,
			History:         history,
		}, nil
	}

	bestText := current
	bestScore := verdict.HumanPercentage

	iteration := 0
	for iteration < h.cfg.MaxIterations {
		iteration++

		rewritten, err := h.rewrite(ctx, current, citationsJSON)
		if err != nil {
			return nil, fmt.Errorf("rewrite iteration %d: %w", iteration, err)
		}

		verdict = h.detector.Detect(ctx, rewritten)
		history = append(history, Step{Iteration: iteration, HumanPercentage: verdict.HumanPercentage})
		h.logger.Info().Int("iteration", iteration).Float64("score", verdict.HumanPercentage).
			Msg("rewrite scored")

		current = rewritten
		if verdict.HumanPercentage > bestScore {
			bestScore = verdict.HumanPercentage
			bestText = rewritten
		}

		if verdict.HumanPercentage >= h.cfg.TargetScore {
			return &Result{
				Text:            current,
				HumanPercentage: verdict.HumanPercentage,
				Iterations:      iteration,
				TargetReached:   true,
				History:         history,
			}, nil
		}

		if err := h.pause(ctx); err != nil {
			return nil, err
		}
	}

	return &Result{
		Text:            bestText,
		HumanPercentage: bestScore,
		Iterations:      iteration,
		TargetReached:   false,
		History:         history,
	}, nil
}

// rewrite performs one LLM rewrite round.
func (h *Humanizer) rewrite(ctx context.Context, text, citationsJSON string) (string, error) {
	prompt := fmt.Sprintf("Citations to preserve exactly:\n%s\n\nText to rewrite:\n%s", citationsJSON, text)

	resp, err := h.llm.Complete(ctx, llm.Request{
		System:      rewriteSystemPrompt,
		User:        prompt,
		Temperature: rewriteTemperature,
	})
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", fmt.Errorf("empty rewrite response")
	}
	return resp.Content, nil
}

// pause sleeps between rounds unless pacing is disabled.
func (h *Humanizer) pause(ctx context.Context) error {
	if h.cfg.IterationDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(h.cfg.IterationDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
