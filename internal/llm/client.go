// Package llm provides chat-completion clients for the Thesis Research Service.
//
// The service uses LLMs for three things: generating per-chapter literature
// search queries, scoring candidate sources for relevance, and the text
// generation and humanization facade. All of them go through the provider
// agnostic Client interface defined here; OpenAI and Gemini implementations
// are provided.
package llm

import "context"

// Message roles used in chat requests.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Request describes a single chat completion call.
type Request struct {
	// System is the system-level instruction (may be empty).
	System string

	// User is the user message content.
	User string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens limits the completion length (0 means provider default).
	MaxTokens int

	// JSONMode asks the provider for a JSON-formatted response where the
	// provider supports it.
	JSONMode bool
}

// Usage contains token accounting reported by the provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the provider's completion.
type Response struct {
	// Content is the raw completion text.
	Content string

	// Model is the model that produced the completion.
	Model string

	// Usage is the token usage for the call.
	Usage Usage
}

// Client defines the interface for chat completion providers.
//
// Implementations should respect context cancellation, retry transient API
// errors, and return *APIError for provider-reported failures.
type Client interface {
	// Complete performs a single chat completion.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Provider returns the provider name (e.g. "openai", "gemini").
	Provider() string

	// Model returns the model identifier in use.
	Model() string
}
