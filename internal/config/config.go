// Package config loads runtime tunables from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Session tunes identity allocation and channel liveness.
type Session struct {
	IdentityPrefix    string        `env:"LOTO_IDENTITY_PREFIX"    envDefault:"loto-"`
	KeepaliveInterval time.Duration `env:"LOTO_KEEPALIVE_INTERVAL" envDefault:"2500ms"`
	ConnectTimeout    time.Duration `env:"LOTO_CONNECT_TIMEOUT"    envDefault:"12s"`
	ConflictRetries   uint          `env:"LOTO_CONFLICT_RETRIES"   envDefault:"5"`
	ConflictBackoff   time.Duration `env:"LOTO_CONFLICT_BACKOFF"   envDefault:"500ms"`
	AllocRetries      uint          `env:"LOTO_ALLOC_RETRIES"      envDefault:"3"`
	AllocBackoff      time.Duration `env:"LOTO_ALLOC_BACKOFF"      envDefault:"1s"`
}

// Store selects where relay credentials live.
type Store struct {
	Backend   string `env:"LOTO_CRED_BACKEND" envDefault:"file"`
	Path      string `env:"LOTO_CRED_PATH"    envDefault:".loto/turn.json"`
	Key       string `env:"LOTO_CRED_KEY"     envDefault:"loto_turn_config"`
	RedisAddr string `env:"REDIS_ADDR"        envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB"          envDefault:"0"`
}

// Commentary configures the number-call MC.
type Commentary struct {
	APIKey  string        `env:"LOTO_COMMENTARY_API_KEY"`
	BaseURL string        `env:"LOTO_COMMENTARY_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	Model   string        `env:"LOTO_COMMENTARY_MODEL"    envDefault:"gemini-2.5-flash"`
	Timeout time.Duration `env:"LOTO_COMMENTARY_TIMEOUT"  envDefault:"4s"`
}

// Config is everything the loto client reads from the environment.
type Config struct {
	Session    Session
	Store      Store
	Commentary Commentary

	RelayURL   string `env:"LOTO_RELAY_URL"   envDefault:"ws://localhost:8080/ws"`
	InviteBase string `env:"LOTO_INVITE_BASE" envDefault:"https://loto.example/"`
	LogLevel   string `env:"LOTO_LOG_LEVEL"   envDefault:"info"`
}

// Load parses Config from the environment, applying defaults.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads any env-tagged struct.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// DefaultSession returns the Session defaults without consulting the environment.
func DefaultSession() Session {
	return Session{
		IdentityPrefix:    "loto-",
		KeepaliveInterval: 2500 * time.Millisecond,
		ConnectTimeout:    12 * time.Second,
		ConflictRetries:   5,
		ConflictBackoff:   500 * time.Millisecond,
		AllocRetries:      3,
		AllocBackoff:      time.Second,
	}
}
