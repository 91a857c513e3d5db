// Package config provides centralized configuration management for toolgate.
// Defaults, an optional YAML config file and TOOLGATE_* environment
// variables are merged by viper and decoded into the typed Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for configuration overrides.
const EnvPrefix = "TOOLGATE"

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// Load reads configuration from the given file path (optional, searched in
// the usual config locations when empty) plus the environment, and returns
// the decoded Config. Safe to call multiple times; the last successful load
// wins.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/toolgate")
		v.AddConfigPath("/etc/toolgate")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file anywhere is fine, defaults plus env apply.
	}

	cfg := &Config{}
	decode := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, decode); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	setConfig(cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8710)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("rate_limit.max_requests", 3)
	v.SetDefault("rate_limit.window", time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "SIMPLE")
}

// GetConfig returns the current application configuration (thread-safe).
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}
