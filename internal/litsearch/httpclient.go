package litsearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClientConfig configures the shared literature-API HTTP client.
type HTTPClientConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the number of transport-level retry attempts on 429/5xx.
	MaxRetries int

	// RetryDelay is the base delay between transport-level retries.
	RetryDelay time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// APIKey and APIKeyHeader configure optional API-key authentication.
	APIKey       string
	APIKeyHeader string
}

// HTTPClient wraps http.Client with rate limiting and 429/5xx retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a rate-limited HTTP client for literature APIs.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 5
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 5
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Scribenet-ThesisService/1.0"
	}

	return &HTTPClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes the request, waiting for the rate limiter before each attempt
// and retrying on 429 (with Retry-After support) and 5xx responses.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.MaxRetries {
				if err := sleepCtx(req.Context(), c.config.RetryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		if !shouldRetryStatus(resp.StatusCode) {
			return resp, nil
		}

		delay := retryDelayFrom(resp, c.config.RetryDelay)
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if attempt < c.config.MaxRetries {
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			if err := sleepCtx(req.Context(), delay); err != nil {
				return nil, err
			}
			continue
		}
		return nil, fmt.Errorf("max retries exhausted after %d attempts, last status: %d",
			c.config.MaxRetries+1, resp.StatusCode)
	}

	return nil, lastErr
}

// shouldRetryStatus reports whether a status code warrants a retry.
func shouldRetryStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// retryDelayFrom honors the Retry-After header when present, in either
// seconds or HTTP-date form, falling back to the configured delay.
func retryDelayFrom(resp *http.Response, fallback time.Duration) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return fallback
	}
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return fallback
}

// sleepCtx waits for the given duration, aborting on context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
