package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console, pretty).
	Format string

	// Output is the output destination (stdout, stderr).
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new zerolog logger based on configuration.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var output io.Writer

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	// Configure time format
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	// Use console writer for pretty output in development
	if strings.ToLower(cfg.Format) == "console" || strings.ToLower(cfg.Format) == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	// Create logger with context
	logger := zerolog.New(output).With().Timestamp()

	// Add caller information if configured
	if cfg.AddSource {
		logger = logger.Caller()
	}

	// Build the final logger
	log := logger.Logger()

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	log = log.Level(level)

	return log
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithThesisContext adds common research run fields to a logger.
func WithThesisContext(logger zerolog.Logger, requestID, thesisID string) zerolog.Logger {
	return logger.With().
		Str("request_id", requestID).
		Str("thesis_id", thesisID).
		Logger()
}

// WithSearchContext adds search-related fields to a logger.
func WithSearchContext(logger zerolog.Logger, query, provider string) zerolog.Logger {
	return logger.With().
		Str("query", query).
		Str("provider", provider).
		Logger()
}

// WithSourceContext adds source-related fields to a logger.
func WithSourceContext(logger zerolog.Logger, doi, title string) zerolog.Logger {
	return logger.With().
		Str("doi", doi).
		Str("title", title).
		Logger()
}

// WithChapterContext adds chapter fields to a logger.
func WithChapterContext(logger zerolog.Logger, chapterNumber int, chapterTitle string) zerolog.Logger {
	return logger.With().
		Int("chapter", chapterNumber).
		Str("chapter_title", chapterTitle).
		Logger()
}
