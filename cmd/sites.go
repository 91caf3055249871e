package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/transfer"
)

var (
	importCharset     string
	importConcurrency int
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Import and export pilgrim sites",
}

var sitesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import sites from a GeoJSON, YAML seed or shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		charset := importCharset
		if charset == "" {
			charset = cfg.Import.DBFCharset
		}
		features, err := transfer.ReadFile(args[0], charset)
		if err != nil {
			return err
		}

		env, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := importConcurrency
		if concurrency == 0 {
			concurrency = cfg.Import.Concurrency
		}
		res, err := transfer.NewImporter(env.Catalog, concurrency).Import(ctx, features)
		if err != nil {
			return eris.Wrap(err, "sites import")
		}

		zap.L().Info("sites imported",
			zap.String("file", args[0]),
			zap.Int("created", res.Created),
			zap.Int("skipped", res.Skipped),
		)
		return nil
	},
}

var sitesExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export all sites to GeoJSON (.geojson, .json, or - for stdout) or XLSX (.xlsx)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		env, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer env.Close()

		fc, err := env.Catalog.List(ctx)
		if err != nil {
			return eris.Wrap(err, "sites export")
		}

		path := args[0]
		switch {
		case path == "-":
			return transfer.WriteGeoJSON(cmd.OutOrStdout(), fc)
		case strings.EqualFold(filepath.Ext(path), ".xlsx"):
			if err := transfer.WriteXLSX(path, fc); err != nil {
				return err
			}
		case strings.EqualFold(filepath.Ext(path), ".geojson"), strings.EqualFold(filepath.Ext(path), ".json"):
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrapf(err, "create %s", path)
			}
			if err := transfer.WriteGeoJSON(f, fc); err != nil {
				f.Close() //nolint:errcheck
				return err
			}
			if err := f.Close(); err != nil {
				return eris.Wrapf(err, "close %s", path)
			}
		default:
			return eris.Errorf("unsupported export format %q", filepath.Ext(path))
		}

		zap.L().Info("sites exported", zap.String("file", path), zap.Int("sites", len(fc.Features)))
		return nil
	},
}

func init() {
	sitesImportCmd.Flags().StringVar(&importCharset, "charset", "", "DBF attribute charset for shapefiles (default from config)")
	sitesImportCmd.Flags().IntVar(&importConcurrency, "concurrency", 0, "concurrent creates (default from config)")
	sitesCmd.AddCommand(sitesImportCmd, sitesExportCmd)
	rootCmd.AddCommand(sitesCmd)
}
