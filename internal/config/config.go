// Package config loads and validates service configuration via Viper.
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
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Store     StoreConfig     `mapstructure:"store"`
	Index     IndexConfig     `mapstructure:"index"`
	Search    SearchConfig    `mapstructure:"search"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig toggles the bearer-token requirement on the write path. Token
// content validation belongs to an external collaborator; the service only
// enforces the scheme.
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// CORSConfig restricts browser origins. Never use "*" in production.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AdmissionConfig tunes the SLA estimator and queue interaction.
type AdmissionConfig struct {
	PerItemCostSeconds int `mapstructure:"per_item_cost_seconds"`
	FixedBufferSeconds int `mapstructure:"fixed_buffer_seconds"`
	PushTimeoutSeconds int `mapstructure:"push_timeout_seconds"`
}

// ResolverConfig bounds hostname resolution during URL safety checks.
type ResolverConfig struct {
	TimeoutSeconds int   `mapstructure:"timeout_seconds"`
	MaxParallel    int64 `mapstructure:"max_parallel"`
}

// QueueConfig selects and configures the ingestion queue provider.
type QueueConfig struct {
	Provider string            `mapstructure:"provider"`
	Memory   MemoryQueueConfig `mapstructure:"memory"`
	PubSub   PubSubConfig      `mapstructure:"pubsub"`
}

// MemoryQueueConfig sizes the in-memory queue lanes.
type MemoryQueueConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// PubSubConfig names the GCP project and per-priority topics.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	HighTopic string `mapstructure:"high_topic"`
	LowTopic  string `mapstructure:"low_topic"`
}

// StoreConfig selects and configures the job store provider.
type StoreConfig struct {
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the pgx connection pool.
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	MinConns     int32  `mapstructure:"min_conns"`
	ConnLifetime int    `mapstructure:"conn_lifetime_seconds"`
}

// IndexConfig selects the query gateway binding.
type IndexConfig struct {
	Provider string `mapstructure:"provider"`
}

// SearchConfig bounds search pagination.
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEARCHCORE")
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
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("auth.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"https://dashboard.atlas-search.com"})
	v.SetDefault("admission.per_item_cost_seconds", 1)
	v.SetDefault("admission.fixed_buffer_seconds", 30)
	v.SetDefault("admission.push_timeout_seconds", 5)
	v.SetDefault("resolver.timeout_seconds", 5)
	v.SetDefault("resolver.max_parallel", 32)
	v.SetDefault("queue.provider", "memory")
	v.SetDefault("queue.memory.capacity", 4096)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.postgres.table", "jobs")
	v.SetDefault("index.provider", "memory")
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 50)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Admission.PerItemCostSeconds <= 0 {
		return fmt.Errorf("admission.per_item_cost_seconds must be > 0")
	}
	if c.Admission.FixedBufferSeconds < 0 {
		return fmt.Errorf("admission.fixed_buffer_seconds must be >= 0")
	}
	if c.Resolver.MaxParallel <= 0 {
		return fmt.Errorf("resolver.max_parallel must be > 0")
	}
	switch c.Queue.Provider {
	case "memory", "noop":
	case "pubsub":
		if c.Queue.PubSub.ProjectID == "" || c.Queue.PubSub.HighTopic == "" || c.Queue.PubSub.LowTopic == "" {
			return fmt.Errorf("queue.pubsub requires project_id, high_topic and low_topic")
		}
	default:
		return fmt.Errorf("unknown queue provider: %s", c.Queue.Provider)
	}
	switch c.Store.Provider {
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set when store.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown store provider: %s", c.Store.Provider)
	}
	switch c.Index.Provider {
	case "memory", "noop":
	default:
		return fmt.Errorf("unknown index provider: %s", c.Index.Provider)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit must be >= search.default_limit")
	}
	return nil
}

// PushTimeout converts the admission push timeout into a duration.
func (c Config) PushTimeout() time.Duration {
	return time.Duration(c.Admission.PushTimeoutSeconds) * time.Second
}

// ResolverTimeout converts the resolver timeout into a duration.
func (c Config) ResolverTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutSeconds) * time.Second
}
