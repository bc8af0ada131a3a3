// Package detect implements the AI-content detection client backed by the
// ZeroGPT API on RapidAPI.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the ZeroGPT RapidAPI base URL.
	DefaultBaseURL = "https://zerogpt.p.rapidapi.com"

	// DefaultHost is the X-RapidAPI-Host header value.
	DefaultHost = "zerogpt.p.rapidapi.com"

	// DefaultTimeout is the request timeout.
	DefaultTimeout = 30 * time.Second

	// detectPath is the text detection endpoint.
	detectPath = "/api/v1/detectText"

	// maxResponseSize caps the response body read.
	maxResponseSize = 1 << 20
)

// Config holds configuration for the detection client.
type Config struct {
	// APIKey is the RapidAPI key. Empty disables detection; every check then
	// returns the permissive fallback.
	APIKey string

	// Host is the X-RapidAPI-Host header value.
	Host string

	// BaseURL overrides the API base URL (tests point it at a mock server).
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Result is one detection verdict. Percentages are in [0,100] and sum to
// roughly 100.
type Result struct {
	// HumanPercentage is the likelihood the text is human written.
	HumanPercentage float64

	// AIPercentage is the likelihood the text is machine generated.
	AIPercentage float64
}

// Detector scores text for AI authorship. Implemented by *Client.
type Detector interface {
	Detect(ctx context.Context, text string) Result
}

// Client calls the ZeroGPT detection endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ Detector = (*Client)(nil)

// New creates a new detection client.
func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "detect").Logger(),
	}
}

// detectRequest is the JSON request body.
type detectRequest struct {
	InputText string `json:"input_text"`
}

// detectResponse covers both response shapes the API has been observed to
// return: the wrapped success/data form and the flat fakePercentage form.
type detectResponse struct {
	Success bool `json:"success"`
	Data    struct {
		IsHumanWritten float64 `json:"is_human_written"`
		IsGPTGenerated float64 `json:"is_gpt_generated"`
	} `json:"data"`
	FakePercentage float64 `json:"fakePercentage"`
}

// fallback is returned whenever detection cannot run. The permissive score
// keeps detection failures from ever blocking a pipeline.
func fallback() Result {
	return Result{HumanPercentage: 100, AIPercentage: 0}
}

// Detect scores the given text. A missing API key, transport failure, non-2xx
// status, or unparsable response all yield the human=100 fallback.
func (c *Client) Detect(ctx context.Context, text string) Result {
	if c.config.APIKey == "" {
		c.logger.Warn().Msg("detection API key not configured, returning fallback score")
		return fallback()
	}

	result, err := c.detect(ctx, text)
	if err != nil {
		c.logger.Warn().Err(err).Msg("detection failed, returning fallback score")
		return fallback()
	}
	return result
}

func (c *Client) detect(ctx context.Context, text string) (Result, error) {
	payload, err := json.Marshal(detectRequest{InputText: text})
	if err != nil {
		return Result{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+detectPath, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.config.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.config.Host)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Result{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("detection API status %d", resp.StatusCode)
	}

	var decoded detectResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, fmt.Errorf("decoding response: %w", err)
	}

	if decoded.Success {
		return Result{
			HumanPercentage: decoded.Data.IsHumanWritten,
			AIPercentage:    decoded.Data.IsGPTGenerated,
		}, nil
	}
	return Result{
		HumanPercentage: 100 - decoded.FakePercentage,
		AIPercentage:    decoded.FakePercentage,
	}, nil
}
