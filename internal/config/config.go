// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP (echo) server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC server listens on; empty disables gRPC.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the Redis URL for the per-client session bag. Empty uses the in-memory bag (dev only).
	RedisURL string `mapstructure:"REDIS_URL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// LoginCheckInterval is how long a session may go without re-verifying its backing credential (e.g. "5m").
	LoginCheckIntervalRaw string `mapstructure:"LOGIN_CHECK_INTERVAL"`
	// TokenUpdateInterval is the minimum spacing between login token liveness refreshes (e.g. "60s").
	TokenUpdateIntervalRaw string `mapstructure:"TOKEN_UPDATE_INTERVAL"`
	// SessionLifetime is how long a temporary (session-bound) login token may stay idle (e.g. "24h").
	SessionLifetimeRaw string `mapstructure:"SESSION_LIFETIME"`
	// RememberLifetime is the lifetime of a remember-me cookie token (e.g. "360h").
	RememberLifetimeRaw string `mapstructure:"REMEMBER_LIFETIME"`
	// TokenSecretKey is mixed into the key that encrypts secrets bound to login tokens. Required in production.
	TokenSecretKey string `mapstructure:"TOKEN_SECRET_KEY"`
	// TokenAuthEnforced is the default for the token_auth_enforced system flag when platform_settings has no row.
	TokenAuthEnforced bool `mapstructure:"TOKEN_AUTH_ENFORCED"`
	// SecureCookies sets the Secure attribute on session and remember-me cookies.
	SecureCookies bool `mapstructure:"SECURE_COOKIES"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty yields no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// SweepInterval is how often the worker removes expired login and remember-me tokens (e.g. "10m").
	SweepIntervalRaw string `mapstructure:"SWEEP_INTERVAL"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOGIN_CHECK_INTERVAL", "5m")
	v.SetDefault("TOKEN_UPDATE_INTERVAL", "60s")
	v.SetDefault("SESSION_LIFETIME", "24h")
	v.SetDefault("REMEMBER_LIFETIME", "360h") // 15d
	v.SetDefault("TOKEN_SECRET_KEY", "")
	v.SetDefault("TOKEN_AUTH_ENFORCED", false)
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "authsession")
	v.SetDefault("SWEEP_INTERVAL", "10m")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.Env == "production" && cfg.TokenSecretKey == "" {
		return nil, errors.New("config: TOKEN_SECRET_KEY must be set when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// LoginCheckInterval parses LoginCheckIntervalRaw. Returns 5m if unset or invalid.
func (c *Config) LoginCheckInterval() time.Duration {
	return parseDuration(c.LoginCheckIntervalRaw, 5*time.Minute)
}

// TokenUpdateInterval parses TokenUpdateIntervalRaw. Returns 60s if unset or invalid.
func (c *Config) TokenUpdateInterval() time.Duration {
	return parseDuration(c.TokenUpdateIntervalRaw, 60*time.Second)
}

// SessionLifetime parses SessionLifetimeRaw. Returns 24h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	return parseDuration(c.SessionLifetimeRaw, 24*time.Hour)
}

// RememberLifetime parses RememberLifetimeRaw. Returns 360h if unset or invalid.
func (c *Config) RememberLifetime() time.Duration {
	return parseDuration(c.RememberLifetimeRaw, 360*time.Hour)
}

// SweepInterval parses SweepIntervalRaw. Returns 10m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.SweepIntervalRaw, 10*time.Minute)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
