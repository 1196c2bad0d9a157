// Package config provides configuration management for the paper tracker.
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

// Config holds all configuration for the paper tracker service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains LLM client settings for relevance scoring.
	LLM LLMConfig `mapstructure:"llm"`
	// Sources contains paper source API configurations.
	Sources SourcesConfig `mapstructure:"sources"`
	// Recommendations contains recommendation pipeline settings.
	Recommendations RecommendationsConfig `mapstructure:"recommendations"`
	// Backup contains database backup settings.
	Backup BackupConfig `mapstructure:"backup"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// IdleTimeout is the maximum duration to keep idle connections open.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
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
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
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
	// MigrationAutoRun enables automatic migration on startup.
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
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
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

// LLMConfig holds LLM client configuration for relevance scoring.
type LLMConfig struct {
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// MaxTokens is the maximum number of tokens in a completion.
	MaxTokens int `mapstructure:"max_tokens"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from PAPERS_LLM_ANTHROPIC_API_KEY
	// env var). When unset, scoring falls back to neutral ordering.
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// SourcesConfig holds configuration for all paper source APIs.
type SourcesConfig struct {
	// ArXiv contains arXiv API settings.
	ArXiv SourceConfig `mapstructure:"arxiv"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar SourceConfig `mapstructure:"semantic_scholar"`
}

// SourceConfig holds configuration for a single paper source API.
type SourceConfig struct {
	// APIKey is the API key (loaded from environment variable, e.g.
	// PAPERS_SOURCES_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// RetryDelay is the base delay before retrying a rate-limited request.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// RecommendationsConfig holds recommendation pipeline settings.
type RecommendationsConfig struct {
	// CachePath is the path of the JSON cache file.
	CachePath string `mapstructure:"cache_path"`
	// CacheTTL is how long a cached result stays fresh.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// Categories is the list of arXiv categories for the recency feed.
	Categories []string `mapstructure:"categories"`
	// Days is the recency window in days for the arXiv feed.
	Days int `mapstructure:"days"`
	// MaxNewPapers is the maximum number of recency-feed candidates.
	MaxNewPapers int `mapstructure:"max_new_papers"`
	// MaxSeedPapers is the maximum number of library papers used as seeds.
	MaxSeedPapers int `mapstructure:"max_seed_papers"`
	// MaxRelatedPapers is the maximum number of citation-graph candidates.
	MaxRelatedPapers int `mapstructure:"max_related_papers"`
}

// BackupConfig holds database backup settings.
type BackupConfig struct {
	// Script is the backup script to run (empty disables backups).
	Script string `mapstructure:"script"`
	// Debounce is how long to wait after the last write before backing up.
	Debounce time.Duration `mapstructure:"debounce"`
	// DumpPath is the path of the dump file produced by the script.
	DumpPath string `mapstructure:"dump_path"`
	// StatePath is the path of the file recording the last backed-up hash.
	StatePath string `mapstructure:"state_path"`
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

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PAPERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/papers")

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
func loadSecrets(cfg *Config) {
	cfg.LLM.Anthropic.APIKey = os.Getenv("PAPERS_LLM_ANTHROPIC_API_KEY")
	cfg.Sources.SemanticScholar.APIKey = os.Getenv("PAPERS_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "papers")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "papers")
	// Default to "require" for production security. Use PAPERS_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// LLM defaults
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "2s")
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Paper sources defaults - arXiv
	v.SetDefault("sources.arxiv.base_url", "http://export.arxiv.org/api/query")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("sources.arxiv.retry_delay", "1s")

	// Paper sources defaults - Semantic Scholar
	v.SetDefault("sources.semantic_scholar.base_url", "https://api.semanticscholar.org")
	v.SetDefault("sources.semantic_scholar.timeout", "30s")
	v.SetDefault("sources.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("sources.semantic_scholar.retry_delay", "500ms")

	// Recommendation pipeline defaults
	v.SetDefault("recommendations.cache_path", "data/recommendations_cache.json")
	v.SetDefault("recommendations.cache_ttl", "1h")
	v.SetDefault("recommendations.categories", []string{"cs.LG", "cs.CL", "cs.AI", "stat.ML"})
	v.SetDefault("recommendations.days", 3)
	v.SetDefault("recommendations.max_new_papers", 50)
	v.SetDefault("recommendations.max_seed_papers", 10)
	v.SetDefault("recommendations.max_related_papers", 30)

	// Backup defaults (disabled unless a script is configured)
	v.SetDefault("backup.script", "")
	v.SetDefault("backup.debounce", "5s")
	v.SetDefault("backup.dump_path", "data/papers.sql")
	v.SetDefault("backup.state_path", "data/.backup_state")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
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

	// Validate recommendation pipeline config.
	// A missing Anthropic API key is not an error; the scorer degrades to
	// neutral ordering without it.
	if c.Recommendations.CacheTTL <= 0 {
		return fmt.Errorf("recommendations cache_ttl must be positive")
	}
	if c.Recommendations.Days <= 0 {
		return fmt.Errorf("recommendations days must be positive")
	}
	if c.Recommendations.MaxNewPapers <= 0 {
		return fmt.Errorf("recommendations max_new_papers must be positive")
	}
	if c.Recommendations.MaxSeedPapers <= 0 {
		return fmt.Errorf("recommendations max_seed_papers must be positive")
	}
	if c.Recommendations.MaxRelatedPapers <= 0 {
		return fmt.Errorf("recommendations max_related_papers must be positive")
	}
	if len(c.Recommendations.Categories) == 0 {
		return fmt.Errorf("recommendations categories must not be empty")
	}

	if c.Backup.Script != "" && c.Backup.Debounce <= 0 {
		return fmt.Errorf("backup debounce must be positive")
	}

	return nil
}
