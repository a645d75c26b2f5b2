package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"streetart_marketplace/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  "Applies the embedded SQL migrations that have not run yet. Safe to run multiple times.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := connectDB(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrate.Migrate(ctx, db, log); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}
