package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/core/fetchcache"
	"github.com/toolgate/toolgate/internal/output"
)

var (
	cacheName         string
	cacheDir          string
	cacheOutputFormat string
	cacheConfirm      bool
	cacheExportPath   string
	cacheImportPath   string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage disk cache stores",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry count, byte volume and resolved directory for a cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(cacheOutputFormat)
		if err != nil {
			return err
		}

		env := cacheEnv()
		defer env.Close() // nolint:errcheck // best-effort cleanup

		stats, err := env.StatsFor(cmd.Context(), cacheName, cacheDir)
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		fmt.Println(output.CacheStatsTable(stats))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Destroy every entry in a cache (requires --confirm)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cacheConfirm {
			return fetchcache.ErrConfirmRequired
		}

		env := cacheEnv()
		defer env.Close() // nolint:errcheck // best-effort cleanup

		dir := cacheDir
		if dir == "" {
			dir = env.DirFor(cacheName)
		}
		store, err := env.Store(cmd.Context(), dir, 0)
		if err != nil {
			return err
		}
		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("cleared cache %q (%s)\n", cacheName, dir)
		return nil
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a cache as line-delimited JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cacheExportPath == "" {
			return fmt.Errorf("--out is required")
		}

		env := cacheEnv()
		defer env.Close() // nolint:errcheck // best-effort cleanup

		dir := cacheDir
		if dir == "" {
			dir = env.DirFor(cacheName)
		}
		store, err := env.Store(cmd.Context(), dir, 0)
		if err != nil {
			return err
		}
		if err := fetchcache.ExportStore(cmd.Context(), store, cacheExportPath); err != nil {
			return err
		}
		fmt.Printf("exported cache %q to %s\n", cacheName, cacheExportPath)
		return nil
	},
}

var cacheImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Replay an exported file into a cache, skipping malformed lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cacheImportPath == "" {
			return fmt.Errorf("--in is required")
		}

		env := cacheEnv()
		defer env.Close() // nolint:errcheck // best-effort cleanup

		dir := cacheDir
		if dir == "" {
			dir = env.DirFor(cacheName)
		}
		store, err := env.Store(cmd.Context(), dir, 0)
		if err != nil {
			return err
		}
		if err := fetchcache.ImportStore(cmd.Context(), store, cacheImportPath); err != nil {
			return err
		}
		fmt.Printf("imported %s into cache %q\n", cacheImportPath, cacheName)
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheName, "name", "default", "logical cache name")
	cacheCmd.PersistentFlags().StringVar(&cacheDir, "dir", "", "cache directory override (bypasses root resolution)")

	cacheStatsCmd.Flags().StringVar(&cacheOutputFormat, "output-format", string(output.FormatTable), "Output format: table|json")
	cacheClearCmd.Flags().BoolVar(&cacheConfirm, "confirm", false, "confirm the destructive clear")
	cacheExportCmd.Flags().StringVar(&cacheExportPath, "out", "", "export file path")
	cacheImportCmd.Flags().StringVar(&cacheImportPath, "in", "", "import file path")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheExportCmd, cacheImportCmd)
	rootCmd.AddCommand(cacheCmd)
}
