// Package retry provides the generic exponential-backoff call wrapper used
// by every network and LLM call in the research pipeline.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Default retry parameters. Call sites override per operation.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Config holds the retry parameters for one call site.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt. The delay before
	// attempt n+1 is BaseDelay * 2^(n-1): pure exponential backoff, no jitter.
	BaseDelay time.Duration
}

// applyDefaults fills zero fields with the package defaults.
func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
}

// Do calls op, retrying on failure up to cfg.MaxAttempts total attempts with
// exponential backoff between attempts. On exhausting attempts it returns the
// last error wrapped with label for diagnostics. Context cancellation during
// backoff aborts immediately with the context's error.
func Do[T any](ctx context.Context, label string, cfg Config, op func(context.Context) (T, error)) (T, error) {
	cfg.applyDefaults()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.BaseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s: %w", label, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%s: attempts exhausted: %w", label, lastErr)
}
