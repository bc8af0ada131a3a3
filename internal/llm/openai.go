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

// Default values for the OpenAI provider.
const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o"
	defaultOpenAIRetryDelay = 2 * time.Second
)

// chatRequest represents the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatMessage represents a single message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat specifies the output format for the API response.
type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse represents the OpenAI Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// chatChoice represents a single completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage contains token usage information.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// openAIErrorResponse represents an error response from the OpenAI API.
type openAIErrorResponse struct {
	Error openAIErrorDetail `json:"error"`
}

// openAIErrorDetail contains error details from the OpenAI API.
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// OpenAIConfig holds the parameters needed to create an OpenAI client.
// Defined here to avoid importing the config package.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (empty means default).
	Model string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
}

// OpenAIClient implements Client using the OpenAI Chat Completions API.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a chat completion client backed by the OpenAI API.
// Transient API errors are retried up to maxRetries times.
func NewOpenAIClient(cfg OpenAIConfig, timeout time.Duration, maxRetries int) *OpenAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &OpenAIClient{
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
		retryDelay: defaultOpenAIRetryDelay,
	}
}

// Complete sends a chat completion request to the OpenAI API.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, chatMessage{Role: RoleUser, Content: req.User})

	chatReq := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("openai: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := c.doRequest(ctx, chatReq)
		if err == nil {
			return resp, nil
		}

		// Only retry on transient errors (5xx, 429).
		if !isTransientError(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("openai: exhausted %d retries: %w", c.maxRetries, lastErr)
}

// Provider returns the name of the LLM provider.
func (c *OpenAIClient) Provider() string {
	return "openai"
}

// Model returns the model identifier being used.
func (c *OpenAIClient) Model() string {
	return c.model
}

// doRequest performs a single API request to the Chat Completions endpoint.
func (c *OpenAIClient) doRequest(ctx context.Context, chatReq chatRequest) (*Response, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Provider: "openai", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseOpenAIAPIError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	return &Response{
		Content: chatResp.Choices[0].Message.Content,
		Model:   c.model,
		Usage: Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
		},
	}, nil
}

// parseOpenAIAPIError parses an OpenAI API error from the response status code and body.
func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}

	return apiErr
}
