package main

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/auth"
	"github.com/sells-group/pilgrim-map/internal/catalog"
	"github.com/sells-group/pilgrim-map/internal/config"
	"github.com/sells-group/pilgrim-map/internal/db"
)

// storeEnv bundles the services opened from the configured store.
type storeEnv struct {
	Catalog *catalog.Service
	Users   auth.UserStore
	close   func()
}

// Close releases the underlying connections.
func (e *storeEnv) Close() {
	if e.close != nil {
		e.close()
	}
}

// initStore opens the configured backend. SQLite databases are migrated on
// open; Postgres schemas are migrated by the migrate command.
func initStore(ctx context.Context, sc config.StoreConfig) (*storeEnv, error) {
	switch sc.Driver {
	case "postgres":
		pool, err := db.Open(ctx, sc.DatabaseURL, sc.Pool)
		if err != nil {
			return nil, err
		}
		layout, err := resolveLayout(sc.Layout, func() (catalog.Layout, error) {
			return catalog.DetectPostgresLayout(ctx, pool)
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
		zap.L().Info("store opened", zap.String("driver", "postgres"), zap.Stringer("layout", layout))
		return &storeEnv{
			Catalog: catalog.NewService(catalog.NewPostgresStore(pool, layout)),
			Users:   auth.NewPostgresUserStore(pool),
			close:   pool.Close,
		}, nil

	case "sqlite":
		sqlDB, err := db.OpenSQLite(sc.DatabaseURL, int(sc.Pool.MaxConns))
		if err != nil {
			return nil, err
		}
		if err := db.MigrateSQLite(ctx, sqlDB); err != nil {
			closeSQLite(sqlDB)
			return nil, err
		}
		layout, err := resolveLayout(sc.Layout, func() (catalog.Layout, error) {
			return catalog.DetectSQLiteLayout(ctx, sqlDB)
		})
		if err != nil {
			closeSQLite(sqlDB)
			return nil, err
		}
		zap.L().Info("store opened", zap.String("driver", "sqlite"), zap.Stringer("layout", layout))
		return &storeEnv{
			Catalog: catalog.NewService(catalog.NewSQLiteStore(sqlDB, layout)),
			Users:   auth.NewSQLiteUserStore(sqlDB),
			close:   func() { closeSQLite(sqlDB) },
		}, nil

	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// resolveLayout returns the configured layout, or detects it when set to auto.
func resolveLayout(name string, detect func() (catalog.Layout, error)) (catalog.Layout, error) {
	switch name {
	case "blob":
		return catalog.LayoutBlob, nil
	case "discrete":
		return catalog.LayoutDiscrete, nil
	case "", "auto":
		return detect()
	default:
		return catalog.LayoutBlob, eris.Errorf("unknown store layout: %s", name)
	}
}

func closeSQLite(sqlDB *sql.DB) {
	if err := sqlDB.Close(); err != nil {
		zap.L().Warn("sqlite: close", zap.Error(err))
	}
}
