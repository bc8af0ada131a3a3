package llm

import (
	"fmt"
	"time"
)

// FactoryConfig holds the parameters needed to create a Client. Defined in
// the llm package to avoid importing the config package, keeping llm free of
// infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai" or "gemini").
	Provider string
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Gemini contains Gemini-specific settings.
	Gemini GeminiConfig
}

// NewClient creates a Client based on the configuration. Supports "openai"
// and "gemini" providers. Returns an error for unsupported or empty provider
// values.
func NewClient(cfg FactoryConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.OpenAI, cfg.Timeout, cfg.MaxRetries), nil
	case "gemini":
		return NewGeminiClient(cfg.Gemini, cfg.Timeout, cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
