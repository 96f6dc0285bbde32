// @title           Logima Backend API
// @version         0.1.0
// @description     Project tracking API: accounts, projects with AI outcome summaries, and direct-to-bucket uploads.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token. Browsers use the access_token cookie instead.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "logima-backend",
		Short: "HTTP API for the Logima project tracker",
		Long: `logima-backend serves the Logima HTTP API.

Without a subcommand it starts the server. Configuration is read from the
environment, with .env (or the file named by ENV_FILE) loaded first.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
