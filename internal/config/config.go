// Package config loads and validates summarizer configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key when read from the environment.
const EnvPrefix = "APP"

// Record store backends accepted by database.backend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Environment string           `mapstructure:"environment"`
	Testing     bool             `mapstructure:"testing"`
	Server      ServerConfig     `mapstructure:"server"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Fetcher     FetcherConfig    `mapstructure:"fetcher"`
	Summarizer  SummarizerConfig `mapstructure:"summarizer"`
	Worker      WorkerConfig     `mapstructure:"worker"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Reaper      ReaperConfig     `mapstructure:"reaper"`
	Tracing     TracingConfig    `mapstructure:"tracing"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetcherConfig governs page retrieval and text extraction.
type FetcherConfig struct {
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	UserAgent       string `mapstructure:"user_agent"`
	MinContentChars int    `mapstructure:"min_content_chars"`
	MaxBodyBytes    int    `mapstructure:"max_body_bytes"`
}

// SummarizerConfig selects and tunes the summarization provider.
type SummarizerConfig struct {
	Provider       string  `mapstructure:"provider"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	BaseURL        string  `mapstructure:"base_url"`
	MaxWords       int     `mapstructure:"max_words"`
	MaxInputChars  int     `mapstructure:"max_input_chars"`
	Temperature    float32 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// WorkerConfig sizes the background task pool.
type WorkerConfig struct {
	Concurrency         int `mapstructure:"concurrency"`
	QueueDepth          int `mapstructure:"queue_depth"`
	EnqueueTimeoutMs    int `mapstructure:"enqueue_timeout_ms"`
	StoreTimeoutSeconds int `mapstructure:"store_timeout_seconds"`
}

// DatabaseConfig selects the record store backend and its connection settings.
type DatabaseConfig struct {
	Backend         string        `mapstructure:"backend"`
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// ReaperConfig controls the periodic sweep of abandoned processing records.
type ReaperConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from an optional .env file, an optional config file, and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if !v.IsSet("logging.development") {
		cfg.Logging.Development = cfg.Environment == "dev"
	}
	cfg.Summarizer.Provider = strings.ToLower(strings.TrimSpace(cfg.Summarizer.Provider))
	cfg.Database.Backend = strings.ToLower(strings.TrimSpace(cfg.Database.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")
	v.SetDefault("testing", false)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("fetcher.timeout_seconds", 30)
	v.SetDefault("fetcher.user_agent", "page-summarizer/0.1")
	v.SetDefault("fetcher.min_content_chars", 100)
	v.SetDefault("fetcher.max_body_bytes", 10*1024*1024)
	v.SetDefault("summarizer.provider", "openai")
	v.SetDefault("summarizer.model", "gpt-4o-mini")
	v.SetDefault("summarizer.base_url", "")
	v.SetDefault("summarizer.max_words", 300)
	v.SetDefault("summarizer.max_input_chars", 50000)
	v.SetDefault("summarizer.temperature", 0.3)
	v.SetDefault("summarizer.max_tokens", 500)
	v.SetDefault("summarizer.timeout_seconds", 60)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_depth", 64)
	v.SetDefault("worker.enqueue_timeout_ms", 5000)
	v.SetDefault("worker.store_timeout_seconds", 10)
	v.SetDefault("database.backend", BackendMemory)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("reaper.enabled", false)
	v.SetDefault("reaper.schedule", "@every 1m")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "page-summarizer")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("logging.level", "")
}

// bindAliases lets the conventional un-prefixed variables stand in for their APP_ counterparts.
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"server.port":         {"APP_SERVER_PORT", "PORT"},
		"database.dsn":        {"APP_DATABASE_DSN", "DATABASE_URL"},
		"summarizer.api_key":  {"APP_SUMMARIZER_API_KEY", "OPENAI_API_KEY"},
		"logging.development": {"APP_LOGGING_DEVELOPMENT"},
	}
	for key, envs := range aliases {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetcher.timeout_seconds must be > 0")
	}
	if c.Fetcher.MinContentChars < 0 {
		return fmt.Errorf("fetcher.min_content_chars must be >= 0")
	}
	if c.Summarizer.MaxWords <= 0 {
		return fmt.Errorf("summarizer.max_words must be > 0")
	}
	if c.Summarizer.MaxInputChars <= 0 {
		return fmt.Errorf("summarizer.max_input_chars must be > 0")
	}
	if c.Summarizer.TimeoutSeconds <= 0 {
		return fmt.Errorf("summarizer.timeout_seconds must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Worker.QueueDepth < 0 {
		return fmt.Errorf("worker.queue_depth must be >= 0")
	}
	switch c.Database.Backend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the %s backend", c.Database.Backend)
		}
	default:
		return fmt.Errorf("database.backend %q is not supported", c.Database.Backend)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Reaper.Enabled && c.Reaper.Schedule == "" {
		return fmt.Errorf("reaper.schedule must be set when the reaper is enabled")
	}
	return nil
}

// FetchTimeout returns the per-request page fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// ProviderTimeout returns the per-call summarization budget.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Summarizer.TimeoutSeconds) * time.Second
}

// EnqueueTimeout bounds how long an HTTP request waits for queue capacity.
func (c Config) EnqueueTimeout() time.Duration {
	return time.Duration(c.Worker.EnqueueTimeoutMs) * time.Millisecond
}

// StoreTimeout bounds each terminal store write a task performs.
func (c Config) StoreTimeout() time.Duration {
	return time.Duration(c.Worker.StoreTimeoutSeconds) * time.Second
}

// RequestTimeout bounds each HTTP handler.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
