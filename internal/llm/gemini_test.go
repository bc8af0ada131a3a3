package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeminiTestServer(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewGeminiClient(GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-2.0-flash",
		BaseURL: srv.URL,
	}, 5*time.Second, 1)
	client.retryDelay = time.Millisecond
	return client
}

func TestGeminiClientComplete(t *testing.T) {
	t.Parallel()

	t.Run("success with system instruction", func(t *testing.T) {
		t.Parallel()
		client := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

			var req geminiRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotNil(t, req.SystemInstruction)
			assert.Equal(t, "be brief", req.SystemInstruction.Parts[0].Text)
			require.Len(t, req.Contents, 1)
			assert.Equal(t, "user", req.Contents[0].Role)
			assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

			json.NewEncoder(w).Encode(geminiResponse{
				Candidates: []geminiCandidate{{
					Content: geminiContent{Parts: []geminiPart{{Text: `{"ok":`}, {Text: ` true}`}}},
				}},
				UsageMetadata: geminiUsageMetadata{PromptTokenCount: 7, CandidatesTokenCount: 3},
			})
		})

		resp, err := client.Complete(context.Background(), Request{
			System:   "be brief",
			User:     "hello",
			JSONMode: true,
		})
		require.NoError(t, err)
		assert.Equal(t, `{"ok": true}`, resp.Content)
		assert.Equal(t, 7, resp.Usage.InputTokens)
		assert.Equal(t, 3, resp.Usage.OutputTokens)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		client := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(geminiResponse{
				Candidates: []geminiCandidate{{
					Content: geminiContent{Parts: []geminiPart{{Text: "done"}}},
				}},
			})
		})

		resp, err := client.Complete(context.Background(), Request{User: "hello"})
		require.NoError(t, err)
		assert.Equal(t, "done", resp.Content)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("api error is parsed", func(t *testing.T) {
		t.Parallel()
		client := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"code": 400, "message": "invalid argument", "status": "INVALID_ARGUMENT"}}`))
		})

		_, err := client.Complete(context.Background(), Request{User: "hello"})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "gemini", apiErr.Provider)
		assert.Equal(t, "invalid argument", apiErr.Message)
		assert.Equal(t, "INVALID_ARGUMENT", apiErr.Type)
	})

	t.Run("empty candidates is an error", func(t *testing.T) {
		t.Parallel()
		client := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(geminiResponse{})
		})

		_, err := client.Complete(context.Background(), Request{User: "hello"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty candidates")
	})
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		provider     string
		wantErr      bool
		wantProvider string
	}{
		{name: "openai", provider: "openai", wantProvider: "openai"},
		{name: "gemini", provider: "gemini", wantProvider: "gemini"},
		{name: "unsupported", provider: "llama", wantErr: true},
		{name: "empty", provider: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, err := NewClient(FactoryConfig{Provider: tt.provider})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, client.Provider())
		})
	}
}
