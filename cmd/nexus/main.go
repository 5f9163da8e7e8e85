// Command nexus runs the room access-control API.
//
//	nexus migrate --config config.yaml
//	nexus server --config config.yaml
//
// Every config value can be overridden with a NEXUS_* environment variable,
// e.g. NEXUS_DATABASE_DSN or NEXUS_JWT_SECRET.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexus-webapi/nexus/internal/app"
	"github.com/nexus-webapi/nexus/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var appCfg config.AppConfig

	root := &cobra.Command{
		Use:           "nexus",
		Short:         "Room access control API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&appCfg.ConfigPath, "config", "", "path to the YAML config file (default $"+config.ConfigPathEnv+" or "+config.DefaultConfigPath+")")
	root.PersistentFlags().StringVar(&appCfg.EnvFile, "env-file", "", "path to a .env file (default .env)")

	root.AddCommand(&cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API and the token sweeper",
		Long: `Run the HTTP API and the token sweeper.

The database schema is migrated on startup. The process stops gracefully on
SIGINT or SIGTERM, letting an in-flight sweep finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunServer(cmd.Context(), appCfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate(cmd.Context(), appCfg)
		},
	})
	return root
}
