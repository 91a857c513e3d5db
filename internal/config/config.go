package config

import (
	"time"
)

// Config is the complete application configuration, loaded from an optional
// YAML file, TOOLGATE_* environment variables and flags, in increasing
// precedence.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains admin HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CacheConfig contains the disk cache defaults applied to the process Env at
// startup. Zero values leave the corresponding resolution chain untouched.
type CacheConfig struct {
	// Root overrides the cache root directory.
	Root string `mapstructure:"root"`
	// SizeLimitBytes is the default store size limit.
	SizeLimitBytes int64 `mapstructure:"size_limit_bytes"`
	// Expire is the default entry TTL.
	Expire time.Duration `mapstructure:"expire"`
	// FetchLimit is the canonical fetch/result limit callers read back.
	FetchLimit int `mapstructure:"fetch_limit"`
}

// RateLimitConfig contains defaults for limiters addressed through the CLI
// and admin server.
type RateLimitConfig struct {
	// StateDir holds the shared state files. Defaults to the system temp
	// directory.
	StateDir string `mapstructure:"state_dir"`
	// MaxRequests and Window describe the default policy used when a
	// caller does not configure one explicitly.
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// LoggingConfig controls log verbosity and profile.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Profile selects the logging complexity: SIMPLE or STRUCTURED.
	Profile string `mapstructure:"profile"`
}
