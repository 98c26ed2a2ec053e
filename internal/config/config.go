// Package config loads and validates javsync configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store provider names accepted by store.provider.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Store   StoreConfig   `mapstructure:"store"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Cookies CookiesConfig `mapstructure:"cookies"`
	Tasks   TasksConfig   `mapstructure:"tasks"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
}

// MongoConfig controls access to the MongoDB deployment.
type MongoConfig struct {
	URI                   string `mapstructure:"uri"`
	Database              string `mapstructure:"database"`
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
}

// CrawlerConfig governs fetch pacing and page download behavior.
type CrawlerConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	DelaySeconds     int    `mapstructure:"delay_seconds"`
	TaskDelaySeconds int    `mapstructure:"task_delay_seconds"`
}

// CookiesConfig locates exported browser cookie files.
type CookiesConfig struct {
	Dir string `mapstructure:"dir"`
}

// TasksConfig locates the crawl task list.
type TasksConfig struct {
	File string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus/health HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JAVSYNC")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("store.provider", StoreMongo)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "jav")
	v.SetDefault("mongo.connect_timeout_seconds", 5)
	// Both target sites serve captchas to obvious bot agents, so the
	// default imitates a desktop browser.
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("crawler.timeout_seconds", 30)
	v.SetDefault("crawler.delay_seconds", 1)
	v.SetDefault("crawler.task_delay_seconds", 2)
	v.SetDefault("cookies.dir", "cookies")
	v.SetDefault("tasks.file", "tasks.yaml")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Store.Provider {
	case StoreMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri must be set when store.provider is %q", StoreMongo)
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("mongo.database must be set when store.provider is %q", StoreMongo)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.provider must be %q or %q", StoreMongo, StoreMemory)
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.DelaySeconds < 0 {
		return fmt.Errorf("crawler.delay_seconds must be >= 0")
	}
	if c.Tasks.File == "" {
		return fmt.Errorf("tasks.file must be set")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// RequestTimeout is the per-request download budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// RequestDelay is the fixed pause between requests to one site.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Crawler.DelaySeconds) * time.Second
}

// TaskDelay is the pause between consecutive tasks.
func (c Config) TaskDelay() time.Duration {
	return time.Duration(c.Crawler.TaskDelaySeconds) * time.Second
}

// MongoConnectTimeout bounds the initial server selection handshake.
func (c Config) MongoConnectTimeout() time.Duration {
	return time.Duration(c.Mongo.ConnectTimeoutSeconds) * time.Second
}
