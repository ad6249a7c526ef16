package app

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/storage/postgres"
	"github.com/bazaarscan/bazaarscan/internal/storage/sqlite"
)

// Store is a shop repository that can also list vendor phone numbers.
type Store interface {
	shop.Repository
	Phones(ctx context.Context) ([]string, error)
}

var (
	_ Store = (*postgres.ShopRepository)(nil)
	_ Store = (*sqlite.ShopRepository)(nil)
)

// OpenStore opens the configured store and applies its schema. The returned
// function releases it.
func OpenStore(ctx context.Context, cfg StorageConfig) (Store, func(), error) {
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewShopRepository(pool, cfg.QueryTimeout), pool.Close, nil

	case DriverSQLite:
		conn, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open sqlite")
		}
		return sqlite.NewShopRepository(conn, cfg.QueryTimeout), func() { _ = conn.Close() }, nil

	default:
		return nil, nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
