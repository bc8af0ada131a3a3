package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	resp *Response
	err  error
}

func (c *stubClient) Complete(context.Context, Request) (*Response, error) {
	return c.resp, c.err
}

func (c *stubClient) Provider() string { return "stub" }

func (c *stubClient) Model() string { return "stub-model" }

type recordedRequest struct {
	operation string
	model     string
	inTokens  int
	outTokens int
}

type recordedFailure struct {
	operation string
	model     string
	errorType string
}

type stubRecorder struct {
	requests []recordedRequest
	failures []recordedFailure
}

func (r *stubRecorder) RecordLLMRequest(operation, model string, _ float64, inputTokens, outputTokens int) {
	r.requests = append(r.requests, recordedRequest{operation, model, inputTokens, outputTokens})
}

func (r *stubRecorder) RecordLLMRequestFailed(operation, model, errorType string) {
	r.failures = append(r.failures, recordedFailure{operation, model, errorType})
}

func TestInstrumentNilRecorderReturnsClientUnwrapped(t *testing.T) {
	t.Parallel()

	base := &stubClient{resp: &Response{Content: "ok"}}
	assert.Same(t, Client(base), Instrument(base, nil, "ranking"))
}

func TestInstrumentRecordsSuccess(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{}
	client := Instrument(&stubClient{resp: &Response{
		Content: "ok",
		Model:   "gpt-4o-2024",
		Usage:   Usage{InputTokens: 120, OutputTokens: 35},
	}}, recorder, "ranking")

	assert.Equal(t, "stub", client.Provider())
	assert.Equal(t, "stub-model", client.Model())

	resp, err := client.Complete(context.Background(), Request{User: "rank these"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	require.Len(t, recorder.requests, 1)
	assert.Equal(t, recordedRequest{
		operation: "ranking",
		model:     "gpt-4o-2024",
		inTokens:  120,
		outTokens: 35,
	}, recorder.requests[0])
	assert.Empty(t, recorder.failures)
}

func TestInstrumentFallsBackToClientModel(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{}
	client := Instrument(&stubClient{resp: &Response{Content: "ok"}}, recorder, "query_generation")

	_, err := client.Complete(context.Background(), Request{User: "queries"})
	require.NoError(t, err)

	require.Len(t, recorder.requests, 1)
	assert.Equal(t, "stub-model", recorder.requests[0].model)
}

func TestInstrumentRecordsFailureByErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limit", &APIError{Provider: "openai", StatusCode: http.StatusTooManyRequests}, "rate_limit"},
		{"server error", &APIError{Provider: "openai", StatusCode: 503}, "server_error"},
		{"client error", &APIError{Provider: "openai", StatusCode: 400}, "client_error"},
		{"network", &APIError{Provider: "openai", Message: "connection reset"}, "network"},
		{"wrapped api error", fmt.Errorf("completing: %w", &APIError{StatusCode: 502}), "server_error"},
		{"other", errors.New("decode failed"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recorder := &stubRecorder{}
			client := Instrument(&stubClient{err: tt.err}, recorder, "ranking")

			_, err := client.Complete(context.Background(), Request{User: "rank"})
			require.Error(t, err)

			assert.Empty(t, recorder.requests)
			require.Len(t, recorder.failures, 1)
			assert.Equal(t, recordedFailure{
				operation: "ranking",
				model:     "stub-model",
				errorType: tt.want,
			}, recorder.failures[0])
		})
	}
}
