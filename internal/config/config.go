// Package config loads the matching engine's configuration from YAML and
// environment variables with a predictable precedence: explicit path, then
// CONFIG_PATH, then ./local.yaml, then environment only.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root service configuration.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	NATS     NATSConfig     `yaml:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Matching MatchingConfig `yaml:"matching"`
	Queue    QueueConfig    `yaml:"queue"`
	Profile  ProfileConfig  `yaml:"profile"`
}

// RedisConfig locates the waiting index and rate limiter.
type RedisConfig struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	DB   int    `yaml:"db"   env:"REDIS_DB"   env-default:"0"`
}

// PostgresConfig locates the durable queue store.
type PostgresConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

// NATSConfig locates the message bus.
type NATSConfig struct {
	URL  string `yaml:"url"  env:"NATS_URL"  env-default:"nats://localhost:4222"`
	Name string `yaml:"name" env:"NATS_NAME" env-default:"match-engine"`
}

// MetricsConfig is the Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR" env-default:":9091"`
}

// MatchingConfig holds the cycle tunables.
type MatchingConfig struct {
	Interval       time.Duration `yaml:"interval"        env:"MATCH_INTERVAL"        env-default:"5s"`
	BatchSize      int64         `yaml:"batch_size"      env:"MATCH_BATCH_SIZE"      env-default:"50"`
	ScoreThreshold float64       `yaml:"score_threshold" env:"MATCH_SCORE_THRESHOLD" env-default:"0.4"`
	SoftDeadline   time.Duration `yaml:"soft_deadline"   env:"MATCH_SOFT_DEADLINE"   env-default:"10s"`

	// PriorityGenders is the fairness policy: gender classes scanned first
	// within each intent group, in order. A product decision, configured
	// here rather than coded.
	PriorityGenders []string `yaml:"priority_genders" env:"MATCH_PRIORITY_GENDERS" env-separator:"," env-default:"female,nonbinary"`
}

// QueueConfig holds join-path tunables.
type QueueConfig struct {
	EntryTTL       time.Duration `yaml:"entry_ttl"        env:"QUEUE_ENTRY_TTL"        env-default:"10m"`
	JoinRateLimit  int           `yaml:"join_rate_limit"  env:"QUEUE_JOIN_RATE_LIMIT"  env-default:"10"`
	JoinRateWindow time.Duration `yaml:"join_rate_window" env:"QUEUE_JOIN_RATE_WINDOW" env-default:"1m"`
}

// ProfileConfig holds the preference read-path tunables.
type ProfileConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env:"PROFILE_CACHE_TTL" env-default:"60s"`
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration by precedence: explicit path, CONFIG_PATH,
// ./local.yaml, environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", p)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	if path != "" {
		return tryRead(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required")
	}
	if c.Matching.Interval <= 0 {
		return fmt.Errorf("matching.interval must be > 0")
	}
	if c.Matching.BatchSize <= 0 {
		return fmt.Errorf("matching.batch_size must be > 0")
	}
	if c.Matching.ScoreThreshold < 0 || c.Matching.ScoreThreshold > 1 {
		return fmt.Errorf("matching.score_threshold must be in [0,1]")
	}
	for _, g := range c.Matching.PriorityGenders {
		switch g {
		case "female", "male", "nonbinary":
		default:
			return fmt.Errorf("matching.priority_genders: unknown gender class %q", g)
		}
	}
	if c.Queue.EntryTTL <= 0 {
		return fmt.Errorf("queue.entry_ttl must be > 0")
	}
	return nil
}
