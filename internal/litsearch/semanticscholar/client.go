// Package semanticscholar implements the litsearch.Searcher interface for
// the Semantic Scholar Academic Graph API.
package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/litsearch"
)

const (
	// DefaultBaseURL is the Semantic Scholar API base URL.
	DefaultBaseURL = "https://api.semanticscholar.org"

	// DefaultMaxResults caps results per search request.
	DefaultMaxResults = 10

	// DefaultTimeout is the request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is requests per second. The unauthenticated pool is
	// shared; an API key raises the limit.
	DefaultRateLimit = 1.0

	// searchFields is the field list requested from the API.
	searchFields = "title,abstract,year,citationCount,url,venue,externalIds,openAccessPdf,authors"
)

// Config holds configuration for the Semantic Scholar client.
type Config struct {
	// BaseURL overrides the API base URL (tests point it at a mock server).
	BaseURL string

	// APIKey is the optional x-api-key header value.
	APIKey string

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

// Client queries Semantic Scholar and maps papers to domain sources.
type Client struct {
	config     Config
	httpClient *litsearch.HTTPClient
	logger     zerolog.Logger
}

var _ litsearch.Searcher = (*Client)(nil)

// New creates a new Semantic Scholar client.
func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	httpClient := litsearch.NewHTTPClient(litsearch.HTTPClientConfig{
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    1,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "x-api-key",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("provider", "semanticscholar").Logger(),
	}
}

// Provider returns the origin tag for sources produced by this client.
func (c *Client) Provider() domain.Provider {
	return domain.ProviderSemanticScholar
}

// Search issues one paper search. Results are sorted so that sources with a
// resolvable PDF link precede those without, tie-broken by descending
// citation count. Non-2xx responses yield an empty result.
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

	var searchResp searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("search response undecodable, returning no results")
		return []domain.Source{}, nil
	}

	sources := make([]domain.Source, 0, len(searchResp.Data))
	for i := range searchResp.Data {
		sources = append(sources, paperToSource(&searchResp.Data[i]))
	}

	// PDF-bearing sources first, then by citation count descending.
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].HasPDF() != sources[j].HasPDF() {
			return sources[i].HasPDF()
		}
		return sources[i].CitationCount > sources[j].CitationCount
	})

	return sources, nil
}

// buildSearchURL constructs the paper search URL with query parameters.
func (c *Client) buildSearchURL(query string) (string, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	base.Path = "/graph/v1/paper/search"

	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(c.config.MaxResults))
	q.Set("fields", searchFields)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// paperToSource converts a Semantic Scholar paper to a domain Source.
func paperToSource(p *paper) domain.Source {
	title := p.Title
	if title == "" {
		title = domain.UntitledPlaceholder
	}

	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	var pdfURL string
	if p.OpenAccessPDF != nil {
		pdfURL = p.OpenAccessPDF.URL
	}

	return domain.Source{
		Title:         title,
		Authors:       authors,
		Year:          p.Year,
		DOI:           domain.NormalizeDOI(p.ExternalIDs.DOI),
		URL:           p.URL,
		PDFURL:        pdfURL,
		Abstract:      p.Abstract,
		Journal:       p.Venue,
		CitationCount: p.CitationCount,
		Origin:        domain.ProviderSemanticScholar,
	}
}
