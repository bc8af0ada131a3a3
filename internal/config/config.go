// Package config provides configuration management for the thesis service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the thesis service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains LLM client settings for query generation and ranking.
	LLM LLMConfig `mapstructure:"llm"`
	// Search contains literature search provider settings.
	Search SearchConfig `mapstructure:"search"`
	// Retrieval contains retrieval store client settings.
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	// Detector contains AI-detection client settings.
	Detector DetectorConfig `mapstructure:"detector"`
	// Pipeline contains research pipeline tuning settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 25).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 5).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Provider is the LLM provider (openai, gemini).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Gemini contains Google Gemini-specific settings.
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from THESIS_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig holds Google Gemini-specific settings.
type GeminiConfig struct {
	// APIKey is the Gemini API key (loaded from THESIS_LLM_GEMINI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Gemini model name.
	Model string `mapstructure:"model"`
	// BaseURL is the Gemini API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// SearchConfig holds configuration for all literature search providers.
type SearchConfig struct {
	// OpenAlex contains OpenAlex API settings.
	OpenAlex SearchProviderConfig `mapstructure:"openalex"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar SearchProviderConfig `mapstructure:"semantic_scholar"`
	// Unpaywall contains Unpaywall PDF resolver settings.
	Unpaywall SearchProviderConfig `mapstructure:"unpaywall"`
}

// SearchProviderConfig holds configuration for a single literature API.
type SearchProviderConfig struct {
	// Enabled controls whether this provider is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g. THESIS_SEARCH_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Email is the contact address sent to polite-pool APIs.
	Email string `mapstructure:"email"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// RetrievalConfig holds retrieval store client settings.
type RetrievalConfig struct {
	// BaseURL is the retrieval store API base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is the retrieval store API key (loaded from THESIS_RETRIEVAL_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Timeout is the timeout for upload and status calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// PollInterval is the interval between document status polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// PollTimeout is the maximum time to wait for document processing.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DetectorConfig holds AI-detection client settings.
type DetectorConfig struct {
	// APIKey is the RapidAPI key (loaded from THESIS_DETECTOR_API_KEY env var).
	// When empty, detection is skipped and text is treated as human-written.
	APIKey string `mapstructure:"-"`
	// Host is the RapidAPI host header value.
	Host string `mapstructure:"host"`
	// BaseURL is the detection API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for detection calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// TargetScore is the minimum human-written score to stop humanizing.
	TargetScore float64 `mapstructure:"target_score"`
	// MaxIterations is the maximum number of humanization rewrites.
	MaxIterations int `mapstructure:"max_iterations"`
}

// PipelineConfig holds research pipeline tuning settings.
type PipelineConfig struct {
	// MaxConcurrentRuns caps the number of research runs in flight.
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs"`
	// MinSourcesPerChapter is the per-chapter floor during selection.
	MinSourcesPerChapter int `mapstructure:"min_sources_per_chapter"`
	// SearchDelay is the pause between consecutive search requests.
	SearchDelay time.Duration `mapstructure:"search_delay"`
	// RankingBatchDelay is the pause between ranking batches.
	RankingBatchDelay time.Duration `mapstructure:"ranking_batch_delay"`
	// IngestDelay is the pause after each ingestion attempt.
	IngestDelay time.Duration `mapstructure:"ingest_delay"`
	// EnrichDelay is the pause between PDF resolver lookups.
	EnrichDelay time.Duration `mapstructure:"enrich_delay"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("THESIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/thesis-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	// LLM provider API keys.
	cfg.LLM.OpenAI.APIKey = os.Getenv("THESIS_LLM_OPENAI_API_KEY")
	cfg.LLM.Gemini.APIKey = os.Getenv("THESIS_LLM_GEMINI_API_KEY")

	// Search provider API keys.
	cfg.Search.SemanticScholar.APIKey = os.Getenv("THESIS_SEARCH_SEMANTIC_SCHOLAR_API_KEY")

	// Retrieval store and detection API keys.
	cfg.Retrieval.APIKey = os.Getenv("THESIS_RETRIEVAL_API_KEY")
	cfg.Detector.APIKey = os.Getenv("THESIS_DETECTOR_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "thesis")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "thesis_service")
	// Default to "require" for production security. Use THESIS_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.temperature", 0.3)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")

	// Search defaults - OpenAlex
	v.SetDefault("search.openalex.enabled", true)
	v.SetDefault("search.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("search.openalex.email", "")
	v.SetDefault("search.openalex.timeout", "30s")
	v.SetDefault("search.openalex.rate_limit", 5.0)
	v.SetDefault("search.openalex.max_results", 20)

	// Search defaults - Semantic Scholar
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("search.semantic_scholar.enabled", true)
	v.SetDefault("search.semantic_scholar.base_url", "https://api.semanticscholar.org")
	v.SetDefault("search.semantic_scholar.timeout", "30s")
	v.SetDefault("search.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("search.semantic_scholar.max_results", 10)

	// Search defaults - Unpaywall
	v.SetDefault("search.unpaywall.enabled", true)
	v.SetDefault("search.unpaywall.base_url", "https://api.unpaywall.org")
	v.SetDefault("search.unpaywall.email", "")
	v.SetDefault("search.unpaywall.timeout", "30s")
	v.SetDefault("search.unpaywall.rate_limit", 5.0)

	// Retrieval store defaults
	v.SetDefault("retrieval.base_url", "")
	v.SetDefault("retrieval.timeout", "60s")
	v.SetDefault("retrieval.poll_interval", "5s")
	v.SetDefault("retrieval.poll_timeout", "5m")

	// Detector defaults
	v.SetDefault("detector.host", "zerogpt.p.rapidapi.com")
	v.SetDefault("detector.base_url", "https://zerogpt.p.rapidapi.com")
	v.SetDefault("detector.timeout", "30s")
	v.SetDefault("detector.target_score", 70.0)
	v.SetDefault("detector.max_iterations", 5)

	// Pipeline defaults
	v.SetDefault("pipeline.max_concurrent_runs", 3)
	v.SetDefault("pipeline.min_sources_per_chapter", 2)
	v.SetDefault("pipeline.search_delay", "200ms")
	v.SetDefault("pipeline.ranking_batch_delay", "500ms")
	v.SetDefault("pipeline.ingest_delay", "1s")
	v.SetDefault("pipeline.enrich_delay", "100ms")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate that the configured LLM provider has its required API key set.
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires THESIS_LLM_OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires THESIS_LLM_GEMINI_API_KEY to be set", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	// Validate pipeline config
	if c.Pipeline.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("pipeline max_concurrent_runs must be positive")
	}
	if c.Pipeline.MinSourcesPerChapter < 0 {
		return fmt.Errorf("pipeline min_sources_per_chapter must not be negative")
	}

	return nil
}
