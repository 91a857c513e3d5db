package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/core/fetchcache"
)

// envInfo is the resolved runtime environment printed by envinfo.
type envInfo struct {
	CacheRoot         string `yaml:"cache_root"`
	CacheSizeLimit    string `yaml:"cache_size_limit"`
	CacheExpire       string `yaml:"cache_expire"`
	FetchLimit        int    `yaml:"fetch_limit"`
	RateLimitStateDir string `yaml:"rate_limit_state_dir"`
	CacheDirEnv       string `yaml:"cache_dir_env,omitempty"`
	SizeLimitEnv      string `yaml:"size_limit_env,omitempty"`
	ExpireEnv         string `yaml:"expire_env,omitempty"`
	FetchLimitEnv     string `yaml:"fetch_limit_env,omitempty"`
}

var envinfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Show the resolved cache and rate limiter environment",
	Long: `Show where caches and rate limiter state resolve to right now,
after applying configuration, programmatic overrides and environment
variables. Resolution is late-bound, so this reflects the current state of
the process environment, not what was captured at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env := cacheEnv()

		stateDir := os.TempDir()
		if cfg := config.GetConfig(); cfg != nil && cfg.RateLimit.StateDir != "" {
			stateDir = cfg.RateLimit.StateDir
		}

		info := envInfo{
			CacheRoot:         env.CacheRoot(),
			CacheSizeLimit:    "unbounded",
			CacheExpire:       "never",
			FetchLimit:        env.FetchLimit(),
			RateLimitStateDir: stateDir,
			CacheDirEnv:       os.Getenv(fetchcache.EnvCacheDir),
			SizeLimitEnv:      os.Getenv(fetchcache.EnvCacheSize),
			ExpireEnv:         os.Getenv(fetchcache.EnvCacheExpire),
			FetchLimitEnv:     os.Getenv(fetchcache.EnvFetchLimit),
		}

		if cfg := config.GetConfig(); cfg != nil {
			if cfg.Cache.SizeLimitBytes > 0 && cfg.Cache.SizeLimitBytes < math.MaxInt64 {
				info.CacheSizeLimit = fmt.Sprintf("%d bytes", cfg.Cache.SizeLimitBytes)
			}
			if cfg.Cache.Expire > 0 {
				info.CacheExpire = cfg.Cache.Expire.String()
			}
		}

		raw, err := yaml.Marshal(info)
		if err != nil {
			return err
		}
		fmt.Print(string(raw))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envinfoCmd)
}
