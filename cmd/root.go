package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pilgrim-map",
	Short: "Catalog of pilgrim sites served as GeoJSON",
	Long:  "Stores pilgrim sites with PostGIS or SQLite, serves them as GeoJSON for map front ends, and provides admin, import and export tooling.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
