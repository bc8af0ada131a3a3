// Package unpaywall implements the open-access PDF resolver used to backfill
// missing document links on deduplicated sources.
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/litsearch"
)

const (
	// DefaultBaseURL is the Unpaywall API base URL.
	DefaultBaseURL = "https://api.unpaywall.org"

	// DefaultTimeout is the request timeout.
	DefaultTimeout = 20 * time.Second

	// DefaultRateLimit is requests per second.
	DefaultRateLimit = 5.0
)

// Config holds configuration for the Unpaywall client.
type Config struct {
	// BaseURL overrides the API base URL (tests point it at a mock server).
	BaseURL string

	// Email is the contact address required by the API.
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// response is the Unpaywall DOI lookup response, reduced to the location data
// the resolver consumes.
type response struct {
	BestOALocation *oaLocation `json:"best_oa_location"`
}

type oaLocation struct {
	URLForPDF string `json:"url_for_pdf"`
	URL       string `json:"url"`
}

// Client resolves open-access PDF URLs by DOI.
type Client struct {
	config     Config
	httpClient *litsearch.HTTPClient
	logger     zerolog.Logger
}

var _ litsearch.PDFResolver = (*Client)(nil)

// New creates a new Unpaywall client.
func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	httpClient := litsearch.NewHTTPClient(litsearch.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: int(cfg.RateLimit),
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("provider", "unpaywall").Logger(),
	}
}

// ResolvePDFURL looks up an open-access PDF link for the DOI. A 404, any
// transport failure, and an answer without a usable location all resolve to
// ("", nil): a miss, never an error the pipeline must handle.
func (c *Client) ResolvePDFURL(ctx context.Context, doi string) (string, error) {
	if doi == "" {
		return "", nil
	}

	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	base.Path = "/v2/" + doi
	q := url.Values{}
	q.Set("email", c.config.Email)
	base.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("doi", doi).Msg("resolve request failed")
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Str("doi", doi).Msg("no open-access location")
		return "", nil
	}

	var parsed response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		c.logger.Debug().Err(err).Str("doi", doi).Msg("resolve response undecodable")
		return "", nil
	}

	if parsed.BestOALocation == nil {
		return "", nil
	}
	if parsed.BestOALocation.URLForPDF != "" {
		return parsed.BestOALocation.URLForPDF, nil
	}
	return parsed.BestOALocation.URL, nil
}
