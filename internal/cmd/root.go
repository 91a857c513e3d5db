// Package cmd implements the toolgate command tree.
package cmd

import (
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/core/fetchcache"
	"github.com/toolgate/toolgate/internal/core/ratelimit"
	"github.com/toolgate/toolgate/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by the main package.
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by the main package to set version information.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "toolgate",
	Short: "Shared throttling and persistent fetch caching for API tool wrappers",
	Long: `toolgate coordinates many concurrent processes sharing external APIs:
a file-based sliding window rate limiter and a persistent, versioned disk
cache, with no central coordination service.

Use the subcommands to inspect and manage the shared state.`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml and ~/.config/toolgate)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initConfig() {
	observability.InitCLILogger("toolgate", verbose)

	if _, err := config.Load(cfgFile); err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to load configuration", err)
	}
}

// cacheEnv builds the cache environment for CLI commands, applying the
// configured defaults so command behavior matches in-process callers.
func cacheEnv() *fetchcache.Env {
	env := fetchcache.NewEnv()
	env.Logger = observability.NewCoreLogger(logLevel())

	cfg := config.GetConfig()
	if cfg == nil {
		return env
	}
	if cfg.Cache.Root != "" {
		env.SetRoot(cfg.Cache.Root)
	}
	if cfg.Cache.SizeLimitBytes > 0 {
		env.SetDefaultSizeLimit(cfg.Cache.SizeLimitBytes)
	}
	if cfg.Cache.Expire > 0 {
		env.SetDefaultExpire(cfg.Cache.Expire)
	}
	if cfg.Cache.FetchLimit > 0 {
		_ = env.SetFetchLimit(cfg.Cache.FetchLimit)
	}
	return env
}

// limiterFromConfig constructs a limiter for a name using the configured
// default policy.
func limiterFromConfig(name string) (*ratelimit.Limiter, error) {
	cfg := config.GetConfig()
	rl := config.RateLimitConfig{MaxRequests: 3, Window: time.Second}
	if cfg != nil {
		rl = cfg.RateLimit
	}
	limiter, err := ratelimit.New(ratelimit.Config{
		MaxRequests: rl.MaxRequests,
		Window:      rl.Window,
		Name:        name,
		StateDir:    rl.StateDir,
	})
	if err != nil {
		return nil, err
	}
	limiter.Logger = observability.NewCoreLogger(logLevel())
	return limiter, nil
}

func logLevel() string {
	if verbose {
		return "debug"
	}
	if cfg := config.GetConfig(); cfg != nil && cfg.Logging.Level != "" {
		return cfg.Logging.Level
	}
	return "info"
}
