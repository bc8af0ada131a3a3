package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with default config", func(t *testing.T) {
		cfg := DefaultLoggingConfig()
		logger := NewLogger(cfg)

		// Logger should be valid (non-zero)
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with debug level", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "stdout",
		}
		logger := NewLogger(cfg)

		// Debug level should be enabled
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with console format", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		}
		logger := NewLogger(cfg)

		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with pretty format", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "info",
			Format: "pretty",
			Output: "stderr",
		}
		logger := NewLogger(cfg)

		assert.NotEqual(t, zerolog.Logger{}, logger)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"TRACE", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"FATAL", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"PANIC", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestWithThesisContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	enriched := WithThesisContext(logger, "req-123", "7c9f7f2e-0000-0000-0000-000000000001")
	enriched.Info().Msg("test message")

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "req-123", logEntry["request_id"])
	assert.Equal(t, "7c9f7f2e-0000-0000-0000-000000000001", logEntry["thesis_id"])
	assert.Equal(t, "test message", logEntry["message"])
}

func TestWithSearchContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	enriched := WithSearchContext(logger, "algorithmic management gig economy", "semantic_scholar")
	enriched.Info().Msg("search started")

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "algorithmic management gig economy", logEntry["query"])
	assert.Equal(t, "semantic_scholar", logEntry["provider"])
}

func TestWithSourceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	enriched := WithSourceContext(logger, "10.1234/abc", "Attention Is All You Need")
	enriched.Info().Msg("source uploaded")

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "10.1234/abc", logEntry["doi"])
	assert.Equal(t, "Attention Is All You Need", logEntry["title"])
}

func TestWithChapterContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	enriched := WithChapterContext(logger, 3, "Methodology")
	enriched.Info().Msg("chapter search")

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, float64(3), logEntry["chapter"])
	assert.Equal(t, "Methodology", logEntry["chapter_title"])
}

func TestLoggerContextChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	// Chain multiple context enrichments
	enriched := WithThesisContext(logger, "req-1", "thesis-1")
	enriched = WithSearchContext(enriched, "platform work surveillance", "openalex")
	enriched = WithChapterContext(enriched, 2, "Literature Review")
	enriched.Info().Msg("chained context")

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err)

	// All fields should be present
	assert.Equal(t, "req-1", logEntry["request_id"])
	assert.Equal(t, "thesis-1", logEntry["thesis_id"])
	assert.Equal(t, "platform work surveillance", logEntry["query"])
	assert.Equal(t, "openalex", logEntry["provider"])
	assert.Equal(t, float64(2), logEntry["chapter"])
	assert.Equal(t, "Literature Review", logEntry["chapter_title"])
}
