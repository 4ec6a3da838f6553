// Package config provides unified configuration loading for the dealer chat service.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the dealer chat service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	LLM           LLMConfig           `yaml:"llm"`
	Queue         QueueConfig         `yaml:"queue"`
	SemanticCache SemanticCacheConfig `yaml:"semantic_cache"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds chat history store settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds byte-cache settings for article responses and feed snapshots.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	ArticleTTL time.Duration `yaml:"article_ttl"`
	IndexTTL   time.Duration `yaml:"index_ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// LLMConfig holds chat-completion provider settings.
type LLMConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	FastModel     string        `yaml:"fast_model"`
	StandardModel string        `yaml:"standard_model"`
	AdvancedModel string        `yaml:"advanced_model"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
}

// QueueConfig holds request queue settings.
type QueueConfig struct {
	MaxConcurrent  int           `yaml:"max_concurrent"`
	MaxQueueSize   int           `yaml:"max_queue_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	StreamTimeout  time.Duration `yaml:"stream_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// SemanticCacheConfig holds fuzzy response cache settings.
type SemanticCacheConfig struct {
	MaxSize             int           `yaml:"max_size"`
	TTL                 time.Duration `yaml:"ttl"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
}

// CatalogConfig holds product feed settings.
type CatalogConfig struct {
	FeedURL      string        `yaml:"feed_url"`
	KnowledgeURL string        `yaml:"knowledge_url"`
	SimilarLimit int           `yaml:"similar_limit"`
	IndexTTL     time.Duration `yaml:"index_ttl"`
}

// RateLimitConfig holds per-client rate limit settings.
type RateLimitConfig struct {
	Enabled   bool          `yaml:"enabled"`
	PerWindow int           `yaml:"per_window"`
	Window    time.Duration `yaml:"window"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "/tmp/dealerchat.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			ArticleTTL: time.Hour,
			IndexTTL:   10 * time.Minute,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		LLM: LLMConfig{
			BaseURL:       "https://openrouter.ai/api/v1",
			FastModel:     "openai/gpt-4o-mini",
			StandardModel: "openai/gpt-4o",
			AdvancedModel: "anthropic/claude-sonnet-4",
			Temperature:   0.3,
			MaxTokens:     1024,
			HTTPTimeout:   90 * time.Second,
		},
		Queue: QueueConfig{
			MaxConcurrent:  10,
			MaxQueueSize:   100,
			RequestTimeout: 60 * time.Second,
			StreamTimeout:  90 * time.Second,
			RetryAttempts:  2,
			RetryDelay:     time.Second,
		},
		SemanticCache: SemanticCacheConfig{
			MaxSize:             1000,
			TTL:                 60 * time.Minute,
			SimilarityThreshold: 0.7,
		},
		Catalog: CatalogConfig{
			SimilarLimit: 10,
			IndexTTL:     10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			PerWindow: 20,
			Window:    time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "debug",
			LogFormat:   "json",
			ServiceName: "dealerchat",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Queue.MaxConcurrent < 1 {
		return fmt.Errorf("queue max_concurrent must be positive")
	}

	if c.Queue.MaxQueueSize < 1 {
		return fmt.Errorf("queue max_queue_size must be positive")
	}

	if c.SemanticCache.SimilarityThreshold <= 0 || c.SemanticCache.SimilarityThreshold > 1 {
		return fmt.Errorf("semantic cache similarity_threshold must be in (0, 1]")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("PRODUCT_FEED_URL"); v != "" {
		cfg.Catalog.FeedURL = v
	}

	if v := os.Getenv("KNOWLEDGE_BASE_URL"); v != "" {
		cfg.Catalog.KnowledgeURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("RATE_LIMIT_DISABLED"); v == "true" {
		cfg.RateLimit.Enabled = false
	}
}
