package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/output"
)

var (
	rateLimitName         string
	rateLimitOutputFormat string
)

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect and manage shared rate limiter state",
}

var rateLimitShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted sliding window state for a limiter",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitOutputFormat)
		if err != nil {
			return err
		}

		limiter, err := limiterFromConfig(rateLimitName)
		if err != nil {
			return err
		}

		snap, err := limiter.Inspect()
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		lines := []string{
			fmt.Sprintf("Rate Limiter %q", rateLimitName),
			"",
			fmt.Sprintf("state file: %s", snap.StateFile),
			fmt.Sprintf("policy:     %d per %.2fs", snap.MaxRequests, snap.Window),
			fmt.Sprintf("recorded:   %d", snap.Recorded),
			fmt.Sprintf("active:     %d", snap.Active),
		}
		fmt.Print(ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove a limiter's state file, restoring full capacity",
	RunE: func(cmd *cobra.Command, args []string) error {
		limiter, err := limiterFromConfig(rateLimitName)
		if err != nil {
			return err
		}
		if err := limiter.Reset(); err != nil {
			return err
		}
		fmt.Printf("reset rate limiter %q (%s)\n", rateLimitName, limiter.StateFile())
		return nil
	},
}

func init() {
	rateLimitCmd.PersistentFlags().StringVar(&rateLimitName, "name", "default", "limiter name")
	rateLimitShowCmd.Flags().StringVar(&rateLimitOutputFormat, "output-format", string(output.FormatTable), "Output format: table|json")

	rateLimitCmd.AddCommand(rateLimitShowCmd, rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
