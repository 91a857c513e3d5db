package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err, "an explicitly named missing file is an error")

	cfg, err = Load("")
	require.NoError(t, err, "no config file anywhere falls back to defaults")

	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 8710, cfg.Server.Port)
	require.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, 3, cfg.RateLimit.MaxRequests)
	require.Equal(t, time.Second, cfg.RateLimit.Window)

	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "SIMPLE", cfg.Logging.Profile)

	require.Empty(t, cfg.Cache.Root, "cache settings default to unset")
	require.Zero(t, cfg.Cache.SizeLimitBytes)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9999
cache:
  root: /var/cache/toolgate
  size_limit_bytes: 1048576
  expire: 2h
  fetch_limit: 25
rate_limit:
  max_requests: 10
  window: 5s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 9999, cfg.Server.Port)

	require.Equal(t, "/var/cache/toolgate", cfg.Cache.Root)
	require.EqualValues(t, 1048576, cfg.Cache.SizeLimitBytes)
	require.Equal(t, 2*time.Hour, cfg.Cache.Expire, "duration strings decode via the hook")
	require.Equal(t, 25, cfg.Cache.FetchLimit)

	require.Equal(t, 10, cfg.RateLimit.MaxRequests)
	require.Equal(t, 5*time.Second, cfg.RateLimit.Window)

	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "SIMPLE", cfg.Logging.Profile, "unset keys keep their defaults")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("TOOLGATE_SERVER_PORT", "7070")
	t.Setenv("TOOLGATE_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a: mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestGetConfigReflectsLastLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Same(t, cfg, GetConfig())
}
