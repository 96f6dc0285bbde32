package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"logima-backend/internal/config"
	"logima-backend/internal/database"
	"logima-backend/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(op func(ctx context.Context, m *database.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Environment, cfg.LogLevel)

			ctx := cmd.Context()
			db, err := database.NewDatabaseClient(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator, err := database.NewMigrator(db.DB(), logger)
			if err != nil {
				return err
			}
			return op(ctx, migrator)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  run(func(ctx context.Context, m *database.Migrator) error { return m.Up(ctx) }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE:  run(func(ctx context.Context, m *database.Migrator) error { return m.Down(ctx) }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		RunE:  run(func(ctx context.Context, m *database.Migrator) error { return m.Status(ctx) }),
	})

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("missing subcommand: up, down or status")
	}
	return cmd
}
