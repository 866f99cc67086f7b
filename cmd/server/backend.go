package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/adapter/storage"
	"github.com/rl1809/pos-register/internal/config"
	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

type backend struct {
	inventory port.InventoryStore
	recorder  port.SaleRecorder
	catalogs  []port.ProductCatalog
	closers   []func() error
}

// openBackend wires the configured inventory backend. Sales are recorded in
// SQL unless everything runs in memory.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	b := &backend{}

	if cfg.Inventory.Backend == config.BackendMemory {
		mem := storage.NewMemoryStore()
		b.inventory = mem
		b.recorder = mem
		b.catalogs = []port.ProductCatalog{mem}
		logger.Warn("using in-memory inventory, nothing will be persisted")
		return b, nil
	}

	db, err := storage.OpenSQL(ctx, storage.Dialect(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	configurePool(db, cfg.Database)
	b.closers = append(b.closers, db.Close)
	logger.Info("connected to database", zap.String("driver", cfg.Database.Driver))

	sqlStore := storage.NewSQLStore(db, storage.Dialect(cfg.Database.Driver))
	if err := sqlStore.Migrate(ctx); err != nil {
		b.Close()
		return nil, err
	}
	b.recorder = sqlStore
	b.inventory = sqlStore
	b.catalogs = []port.ProductCatalog{sqlStore}

	if cfg.Inventory.Backend != config.BackendRedis {
		return b, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	b.closers = append(b.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		b.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	redisAdapter := storage.NewRedisAdapter(rdb)

	// Redis becomes the source of truth for stock from here on
	products, err := sqlStore.ListProducts(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	if err := redisAdapter.SyncProducts(ctx, products); err != nil {
		b.Close()
		return nil, err
	}
	logger.Info("synced stock to redis", zap.Int("products", len(products)))

	b.inventory = redisAdapter
	b.catalogs = append(b.catalogs, redisAdapter)
	return b, nil
}

func configurePool(db *sql.DB, cfg config.Database) {
	if cfg.Driver != string(storage.DialectMySQL) {
		return
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
}

func (b *backend) SaveProducts(ctx context.Context, products []domain.Product) error {
	for _, catalog := range b.catalogs {
		for _, p := range products {
			if err := catalog.SaveProduct(ctx, p); err != nil {
				return fmt.Errorf("save product %s: %w", p.ID, err)
			}
		}
	}
	return nil
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
