// Package config loads app configuration from env and an optional .env
// file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DatabaseMaxConns caps the pgx pool size; 0 keeps the pool default.
	DatabaseMaxConns int32 `mapstructure:"DATABASE_MAX_CONNS"`
	// RedisAddr is the host:port of the Redis holding sessions and caches.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is optional.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisKeyPrefix namespaces the session keys (default "th").
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	// TokenSigningMethod selects hs256 or ed25519.
	TokenSigningMethod string `mapstructure:"TOKEN_SIGNING_METHOD"`
	// TokenSecret is the HS256 secret, or the PEM private key for ed25519.
	TokenSecret string `mapstructure:"TOKEN_SECRET"`
	// TokenPublicKey is the PEM public key; ed25519 only.
	TokenPublicKey string `mapstructure:"TOKEN_PUBLIC_KEY"`
	// TokenIssuer is the iss claim on minted tokens.
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`

	// AccessTTL is the access token lifetime (e.g. "15m").
	AccessTTL string `mapstructure:"ACCESS_TTL"`
	// RefreshTTL is the session (refresh) lifetime; it also bounds the
	// credential cookies (e.g. "168h").
	RefreshTTL string `mapstructure:"REFRESH_TTL"`
	// ResetTTL is the password reset token lifetime (e.g. "15m").
	ResetTTL string `mapstructure:"RESET_TTL"`
	// CacheTTL bounds staleness of derived cache entries (e.g. "5m").
	CacheTTL string `mapstructure:"CACHE_TTL"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present), then builds and validates Config from
// the environment. Env vars override .env; a missing .env is ignored.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_CONNS", 0)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_KEY_PREFIX", "th")
	v.SetDefault("TOKEN_SIGNING_METHOD", "hs256")
	v.SetDefault("TOKEN_SECRET", "")
	v.SetDefault("TOKEN_PUBLIC_KEY", "")
	v.SetDefault("TOKEN_ISSUER", "taskhive")
	v.SetDefault("ACCESS_TTL", "15m")
	v.SetDefault("REFRESH_TTL", "168h")
	v.SetDefault("RESET_TTL", "15m")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set")
	}
	if cfg.TokenSecret == "" {
		return nil, errors.New("config: TOKEN_SECRET must be set")
	}

	return &cfg, nil
}

func (c *Config) duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// AccessTokenTTL parses AccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTokenTTL() time.Duration {
	return c.duration(c.AccessTTL, 15*time.Minute)
}

// SessionTTL parses RefreshTTL. Returns 168h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return c.duration(c.RefreshTTL, 168*time.Hour)
}

// ResetTokenTTL parses ResetTTL. Returns 15m if unset or invalid.
func (c *Config) ResetTokenTTL() time.Duration {
	return c.duration(c.ResetTTL, 15*time.Minute)
}

// CacheEntryTTL parses CacheTTL. Returns 5m if unset or invalid.
func (c *Config) CacheEntryTTL() time.Duration {
	return c.duration(c.CacheTTL, 5*time.Minute)
}
