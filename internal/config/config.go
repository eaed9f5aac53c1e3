// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Queue     QueueConfig     `mapstructure:"queue"`
	DB        DBConfig        `mapstructure:"db"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Publisher PublisherConfig `mapstructure:"publisher"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// QueueConfig governs the durable work queue.
type QueueConfig struct {
	// Store selects the backing store: "leveldb" or "memory".
	Store string `mapstructure:"store"`
	// StorePath is the on-disk location of the leveldb store.
	StorePath string `mapstructure:"store_path"`
	// BatchSize caps how many items one run claims. Zero means no cap.
	BatchSize int `mapstructure:"batch_size"`
	// SkipBlacklisted drops blacklisted ids from claimed batches.
	SkipBlacklisted bool `mapstructure:"skip_blacklisted"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	// Provider selects the implementation: "postgres" or "noop".
	Provider           string `mapstructure:"provider"`
	DSN                string `mapstructure:"dsn"`
	MaxConns           int    `mapstructure:"max_conns"`
	MinConns           int    `mapstructure:"min_conns"`
	ConnLifetimeMinute int    `mapstructure:"conn_lifetime_minutes"`
}

// ScraperConfig configures page fetching.
type ScraperConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	DelayMinMs        int    `mapstructure:"delay_min_ms"`
	DelayMaxMs        int    `mapstructure:"delay_max_ms"`
	Concurrency       int    `mapstructure:"concurrency"`
	// StaticFallback enables the meta-tag scraper when rendering fails.
	StaticFallback bool `mapstructure:"static_fallback"`
}

// ReportsConfig sets where run reports are persisted.
type ReportsConfig struct {
	// Provider selects the sink: "local", "gcs", or "noop".
	Provider  string `mapstructure:"provider"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PublisherConfig holds metadata for run event notifications.
type PublisherConfig struct {
	// Provider selects the broker: "pubsub", "memory", or "noop".
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ESHOP")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("queue.store", "leveldb")
	v.SetDefault("queue.store_path", "data/queue")
	v.SetDefault("queue.batch_size", 0)
	v.SetDefault("queue.skip_blacklisted", false)
	v.SetDefault("db.provider", "postgres")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("scraper.nav_timeout_seconds", 30)
	v.SetDefault("scraper.delay_min_ms", 2000)
	v.SetDefault("scraper.delay_max_ms", 5000)
	v.SetDefault("scraper.concurrency", 3)
	v.SetDefault("scraper.static_fallback", true)
	v.SetDefault("reports.provider", "noop")
	v.SetDefault("reports.dir", "data/reports")
	v.SetDefault("reports.prefix", "eshop")
	v.SetDefault("publisher.provider", "noop")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Queue.Store {
	case "leveldb":
		if c.Queue.StorePath == "" {
			return fmt.Errorf("queue.store_path must be set for the leveldb store")
		}
	case "memory":
	default:
		return fmt.Errorf("queue.store must be leveldb or memory, got %q", c.Queue.Store)
	}
	switch c.DB.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres provider")
		}
	case "noop":
	default:
		return fmt.Errorf("db.provider must be postgres or noop, got %q", c.DB.Provider)
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.DelayMaxMs < c.Scraper.DelayMinMs {
		return fmt.Errorf("scraper.delay_max_ms must be >= scraper.delay_min_ms")
	}
	switch c.Reports.Provider {
	case "local":
		if c.Reports.Dir == "" {
			return fmt.Errorf("reports.dir must be set for the local provider")
		}
	case "gcs":
		if c.Reports.GCSBucket == "" {
			return fmt.Errorf("reports.gcs_bucket must be set for the gcs provider")
		}
	case "noop":
	default:
		return fmt.Errorf("reports.provider must be local, gcs, or noop, got %q", c.Reports.Provider)
	}
	switch c.Publisher.Provider {
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic must be set for pubsub")
		}
	case "memory", "noop":
	default:
		return fmt.Errorf("publisher.provider must be pubsub, memory, or noop, got %q", c.Publisher.Provider)
	}
	return nil
}

// NavTimeout converts the configured navigation timeout into a duration.
func (c ScraperConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// DelayMin converts the configured minimum delay into a duration.
func (c ScraperConfig) DelayMin() time.Duration {
	return time.Duration(c.DelayMinMs) * time.Millisecond
}

// DelayMax converts the configured maximum delay into a duration.
func (c ScraperConfig) DelayMax() time.Duration {
	return time.Duration(c.DelayMaxMs) * time.Millisecond
}

// ConnLifetime converts the configured pool lifetime into a duration.
func (c DBConfig) ConnLifetime() time.Duration {
	return time.Duration(c.ConnLifetimeMinute) * time.Minute
}
