package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/observability"
	"github.com/toolgate/toolgate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP server",
	Long: `Run the admin HTTP server exposing health, version, cache store and
rate limiter state endpoints for operators.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		if cfg == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Configuration not loaded", nil)
		}

		observability.InitServerLogger("toolgate", cfg.Logging.Level)

		env := cacheEnv()
		defer env.Close() // nolint:errcheck // best-effort cleanup

		srv := server.New(cfg.Server, server.Deps{
			Env:       env,
			RateLimit: cfg.RateLimit,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
