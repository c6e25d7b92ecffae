// internal/config/config.go
//
// Runtime configuration for the Memory server and terminal client.
// Values come from the process environment, optionally seeded from a .env
// file, and are validated before use.
//
// Environment variables:
//   PORT             listen port (default 5175)
//   LOG_LEVEL        zerolog level (default info)
//   CLIENT_ORIGIN    allowed CORS origin (default http://localhost:5173)
//   DB_PATH          SQLite results database (default ./data/memory.db)
//   JWT_SECRET       HMAC key for session tokens
//   FLIP_BACK_DELAY  mismatch flip-back delay (default 1s)
//   SHUFFLE_DELAY    reset shuffle-in delay (default 200ms)
//   SESSION_TTL      idle session lifetime (default 30m)
//   SYMBOLS_FILE     optional symbol alphabet file

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Port          string        `validate:"required,numeric"`
	LogLevel      string        `validate:"oneof=trace debug info warn error fatal panic disabled"`
	ClientOrigin  string        `validate:"required,url"`
	DBPath        string        `validate:"required"`
	JWTSecret     string        `validate:"required,min=16"`
	FlipBackDelay time.Duration `validate:"gt=0"`
	ShuffleDelay  time.Duration `validate:"gt=0"`
	SessionTTL    time.Duration `validate:"gt=0"`
	SymbolsFile   string
}

var validate = validator.New()

// Load reads .env (if present) and the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		DBPath:       getEnv("DB_PATH", "./data/memory.db"),
		JWTSecret:    getEnv("JWT_SECRET", "dev_secret_change_me"),
		SymbolsFile:  os.Getenv("SYMBOLS_FILE"),
	}

	var err error
	if cfg.FlipBackDelay, err = getDuration("FLIP_BACK_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.ShuffleDelay, err = getDuration("SHUFFLE_DELAY", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getDuration parses k as a time.Duration ("1s", "250ms"), or returns def if unset.
func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", k, err)
	}
	return d, nil
}
