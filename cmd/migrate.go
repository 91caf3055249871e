package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	Long:  "Applies all pending SQL migrations to the configured store in lexicographic order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		switch cfg.Store.Driver {
		case "postgres":
			pool, err := db.Open(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(ctx, pool); err != nil {
				return eris.Wrap(err, "migrate")
			}
		case "sqlite":
			sqlDB, err := db.OpenSQLite(cfg.Store.DatabaseURL, 1)
			if err != nil {
				return err
			}
			defer closeSQLite(sqlDB)
			if err := db.MigrateSQLite(ctx, sqlDB); err != nil {
				return eris.Wrap(err, "migrate")
			}
		}

		zap.L().Info("all migrations applied successfully", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
