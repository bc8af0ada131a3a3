package llm

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// MetricsRecorder receives per-request LLM metrics. It is satisfied by
// *observability.Metrics.
type MetricsRecorder interface {
	RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int)
	RecordLLMRequestFailed(operation, model, errorType string)
}

// Instrument wraps client so every completion is recorded under the given
// operation label. A nil recorder returns the client unwrapped.
func Instrument(client Client, recorder MetricsRecorder, operation string) Client {
	if recorder == nil {
		return client
	}
	return &instrumentedClient{
		client:    client,
		recorder:  recorder,
		operation: operation,
	}
}

type instrumentedClient struct {
	client    Client
	recorder  MetricsRecorder
	operation string
}

var _ Client = (*instrumentedClient)(nil)

func (c *instrumentedClient) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		c.recorder.RecordLLMRequestFailed(c.operation, c.client.Model(), errorType(err))
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = c.client.Model()
	}
	c.recorder.RecordLLMRequest(c.operation, model, time.Since(start).Seconds(), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}

func (c *instrumentedClient) Provider() string { return c.client.Provider() }

func (c *instrumentedClient) Model() string { return c.client.Model() }

// errorType buckets a completion error into a low-cardinality metric label.
func errorType(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "other"
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case apiErr.StatusCode >= 500:
		return "server_error"
	case apiErr.StatusCode >= 400:
		return "client_error"
	default:
		return "network"
	}
}
