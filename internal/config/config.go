// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/guide-quotes/internal/retry"
)

// Store drivers accepted by store.driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Source  SourceConfig  `mapstructure:"source"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Store   StoreConfig   `mapstructure:"store"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SourceConfig describes the table of contents and how to read chapters.
type SourceConfig struct {
	TOCURL          string `mapstructure:"toc_url"`
	TOCRegion       string `mapstructure:"toc_region"`
	ContentRegion   string `mapstructure:"content_region"`
	ExcerptSelector string `mapstructure:"excerpt_selector"`
	UserAgent       string `mapstructure:"user_agent"`
	RespectRobots   bool   `mapstructure:"respect_robots"`
}

// HTTPConfig configures the page fetcher.
type HTTPConfig struct {
	// TimeoutSeconds of zero disables the per-request timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// RequestsPerSecond paces fetches per host; zero means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// StoreConfig selects and configures the chapter store backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms"`
	DSN           string `mapstructure:"dsn"`
	Table         string `mapstructure:"table"`
	MaxConns      int    `mapstructure:"max_conns"`
}

// HarvestConfig governs store retries and the worker pool.
type HarvestConfig struct {
	MaxAttempts  int `mapstructure:"max_attempts"`
	RetryDelayMs int `mapstructure:"retry_delay_ms"`
	Workers      int `mapstructure:"workers"`
	QueueDepth   int `mapstructure:"queue_depth"`
}

// PubSubConfig holds metadata for new-record notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("source.toc_url", "https://practicalguidetoevil.wordpress.com/table-of-contents/")
	v.SetDefault("source.toc_region", "div.entry-content")
	v.SetDefault("source.content_region", "div.entry-content")
	v.SetDefault("source.excerpt_selector", "blockquote, p")
	v.SetDefault("source.user_agent", "guide-quotes/0.1")
	v.SetDefault("source.respect_robots", false)
	v.SetDefault("http.timeout_seconds", 0)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", "quotes.db")
	v.SetDefault("store.busy_timeout_ms", 5000)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "quotes")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("harvest.max_attempts", 5)
	v.SetDefault("harvest.retry_delay_ms", 1000)
	v.SetDefault("harvest.workers", 2)
	v.SetDefault("harvest.queue_depth", 16)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "guide-quotes")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.TOCURL == "" {
		return fmt.Errorf("source.toc_url is required")
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.HTTP.Burst <= 0 {
		return fmt.Errorf("http.burst must be > 0")
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver %q is not one of sqlite, postgres, memory", c.Store.Driver)
	}
	if c.Store.BusyTimeoutMs < 0 {
		return fmt.Errorf("store.busy_timeout_ms must be >= 0")
	}
	if c.Harvest.MaxAttempts <= 0 {
		return fmt.Errorf("harvest.max_attempts must be > 0")
	}
	if c.Harvest.RetryDelayMs < 0 {
		return fmt.Errorf("harvest.retry_delay_ms must be >= 0")
	}
	if c.Harvest.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0")
	}
	if c.Harvest.QueueDepth <= 0 {
		return fmt.Errorf("harvest.queue_depth must be > 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// FetchTimeout converts http.timeout_seconds; zero means no timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BusyTimeout converts store.busy_timeout_ms.
func (c Config) BusyTimeout() time.Duration {
	return time.Duration(c.Store.BusyTimeoutMs) * time.Millisecond
}

// RetryPolicy builds the store write retry policy.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Harvest.MaxAttempts,
		Delay:       time.Duration(c.Harvest.RetryDelayMs) * time.Millisecond,
	}
}
