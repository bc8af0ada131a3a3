package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default values for the Gemini provider.
const (
	defaultGeminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel      = "gemini-2.0-flash"
	defaultGeminiRetryDelay = 2 * time.Second
)

// geminiRequest represents the Gemini generateContent API request body.
type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// geminiContent is a role-tagged list of message parts.
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is a single text fragment.
type geminiPart struct {
	Text string `json:"text"`
}

// generationConfig holds sampling and output-format settings.
type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

// geminiResponse represents the generateContent API response body.
type geminiResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

// geminiCandidate is a single generated candidate.
type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// geminiUsageMetadata contains token usage information.
type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// geminiErrorResponse represents an error response from the Gemini API.
type geminiErrorResponse struct {
	Error geminiErrorDetail `json:"error"`
}

// geminiErrorDetail contains error details from the Gemini API.
type geminiErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GeminiConfig holds the parameters needed to create a Gemini client.
type GeminiConfig struct {
	// APIKey is the Google AI Studio API key.
	APIKey string
	// Model is the model identifier (empty means default).
	Model string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
}

// GeminiClient implements Client using the Gemini generateContent API.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient creates a chat completion client backed by the Gemini API.
// Transient API errors are retried up to maxRetries times.
func NewGeminiClient(cfg GeminiConfig, timeout time.Duration, maxRetries int) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &GeminiClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		maxRetries: maxRetries,
		retryDelay: defaultGeminiRetryDelay,
	}
}

// Complete sends a generateContent request to the Gemini API.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	genReq := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.User}}},
		},
		GenerationConfig: &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		genReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.JSONMode {
		genReq.GenerationConfig.ResponseMimeType = "application/json"
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("gemini: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := c.doRequest(ctx, genReq)
		if err == nil {
			return resp, nil
		}

		if !isTransientError(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("gemini: exhausted %d retries: %w", c.maxRetries, lastErr)
}

// Provider returns the name of the LLM provider.
func (c *GeminiClient) Provider() string {
	return "gemini"
}

// Model returns the model identifier being used.
func (c *GeminiClient) Model() string {
	return c.model
}

// doRequest performs a single API request to the generateContent endpoint.
func (c *GeminiClient) doRequest(ctx context.Context, genReq geminiRequest) (*Response, error) {
	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Provider: "gemini", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseGeminiAPIError(resp.StatusCode, respBody)
	}

	var genResp geminiResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, fmt.Errorf("gemini: failed to unmarshal response: %w", err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: empty candidates in response")
	}

	var content bytes.Buffer
	for _, part := range genResp.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}

	return &Response{
		Content: content.String(),
		Model:   c.model,
		Usage: Usage{
			InputTokens:  genResp.UsageMetadata.PromptTokenCount,
			OutputTokens: genResp.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

// parseGeminiAPIError parses a Gemini API error from the response status code and body.
func parseGeminiAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "gemini",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp geminiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Status
	}

	return apiErr
}
