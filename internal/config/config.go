package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type FeedDriver string

const (
	FeedMemory   FeedDriver = "memory"
	FeedSQLite   FeedDriver = "sqlite"
	FeedRedis    FeedDriver = "redis"
	FeedFirebase FeedDriver = "firebase"
)

type Config struct {
	HTTPAddr   string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel   slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	FeedDriver FeedDriver `env:"FEED_DRIVER" envDefault:"memory"`
	SPADir     string     `env:"SPA_DIR"`
	// SeedDemo publishes a demo challenge catalog when the feed has none.
	SeedDemo bool `env:"SEED_DEMO" envDefault:"true"`

	DBPath   string `env:"DB_PATH" envDefault:"data/brainy.db"`
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	FirebaseDatabaseURL  string        `env:"FIREBASE_DATABASE_URL"`
	FirebaseCredentials  string        `env:"FIREBASE_CREDENTIALS"`
	FirebasePollInterval time.Duration `env:"FIREBASE_POLL_INTERVAL" envDefault:"1s"`

	// StateWaitTimeout bounds how long a write request waits for its echo
	// before answering with the last known state.
	StateWaitTimeout time.Duration `env:"STATE_WAIT_TIMEOUT" envDefault:"2s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	switch c.FeedDriver {
	case FeedMemory, FeedSQLite, FeedRedis:
	case FeedFirebase:
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL is required for the firebase feed")
		}
	default:
		return fmt.Errorf("unknown FEED_DRIVER %q", c.FeedDriver)
	}
	if c.StateWaitTimeout < 0 {
		return fmt.Errorf("STATE_WAIT_TIMEOUT must not be negative")
	}
	return nil
}
