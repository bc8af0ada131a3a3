// Package openalex implements the litsearch.Searcher interface for the
// OpenAlex bibliographic graph API.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/litsearch"
)

const (
	// DefaultBaseURL is the OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultMaxResults caps results per search request.
	DefaultMaxResults = 20

	// DefaultTimeout is the request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is requests per second (polite pool with mailto).
	DefaultRateLimit = 10.0
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL overrides the API base URL (tests point it at a mock server).
	BaseURL string

	// Email is the contact address sent as the mailto parameter for
	// polite-pool rate limits.
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// MaxResults caps results per search request.
	MaxResults int
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
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client queries OpenAlex and maps works to domain sources.
type Client struct {
	config     Config
	httpClient *litsearch.HTTPClient
	logger     zerolog.Logger
}

var _ litsearch.Searcher = (*Client)(nil)

// New creates a new OpenAlex client.
func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	httpClient := litsearch.NewHTTPClient(litsearch.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: int(cfg.RateLimit),
		UserAgent: "Scribenet-ThesisService/1.0 (mailto:" + cfg.Email + ")",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("provider", "openalex").Logger(),
	}
}

// Provider returns the origin tag for sources produced by this client.
func (c *Client) Provider() domain.Provider {
	return domain.ProviderOpenAlex
}

// Search issues one works query. Non-2xx responses and decode failures yield
// an empty result: search failures are non-fatal to the pipeline.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Source, error) {
	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("search request failed, returning no results")
		return []domain.Source{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("query", query).
			Str("body", string(body)).
			Msg("search returned non-success status, returning no results")
		return []domain.Source{}, nil
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("search response undecodable, returning no results")
		return []domain.Source{}, nil
	}

	sources := make([]domain.Source, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		sources = append(sources, c.workToSource(&searchResp.Results[i]))
	}
	return sources, nil
}

// buildSearchURL constructs the /works URL with query parameters.
func (c *Client) buildSearchURL(query string) (string, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	base.Path = "/works"

	q := url.Values{}
	q.Set("search", query)
	q.Set("per-page", strconv.Itoa(c.config.MaxResults))
	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// workToSource converts an OpenAlex work to a domain Source.
func (c *Client) workToSource(w *work) domain.Source {
	title := w.DisplayName
	if title == "" {
		title = w.Title
	}
	if title == "" {
		title = domain.UntitledPlaceholder
	}

	authors := make([]string, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			authors = append(authors, a.Author.DisplayName)
		}
	}

	var landingURL, pdfURL, journal, publisher string
	if w.PrimaryLocation != nil {
		landingURL = w.PrimaryLocation.LandingPageURL
		pdfURL = w.PrimaryLocation.PDFURL
		if w.PrimaryLocation.Source != nil {
			journal = w.PrimaryLocation.Source.DisplayName
			publisher = w.PrimaryLocation.Source.HostOrganization
		}
	}
	if w.OpenAccess != nil && w.OpenAccess.OAURL != "" {
		pdfURL = w.OpenAccess.OAURL
	}

	return domain.Source{
		Title:         title,
		Authors:       authors,
		Year:          w.PublicationYear,
		DOI:           domain.NormalizeDOI(w.DOI),
		URL:           landingURL,
		PDFURL:        pdfURL,
		Abstract:      reconstructAbstract(w.AbstractInvertedIndex),
		Journal:       journal,
		Publisher:     publisher,
		CitationCount: w.CitedByCount,
		Origin:        domain.ProviderOpenAlex,
	}
}

// reconstructAbstract rebuilds the abstract text from OpenAlex's inverted
// index format, which maps words to their positions.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	total := 0
	for _, positions := range invertedIndex {
		total += len(positions)
	}
	// Guard against malicious payloads with excessive position entries.
	if total > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, total)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	var b strings.Builder
	b.Grow(total * 7)
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.word)
	}
	return b.String()
}
