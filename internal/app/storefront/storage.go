package storefront

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/storefront/internal/config"
	"github.com/magabrotheeeer/storefront/internal/migrations"
	"github.com/magabrotheeeer/storefront/internal/storage"
	"github.com/magabrotheeeer/storefront/internal/storage/memory"
	"github.com/magabrotheeeer/storefront/internal/storage/mongo"
	"github.com/magabrotheeeer/storefront/internal/storage/repository"
)

type userStore struct {
	repo  storage.UserRepository
	ready func(ctx context.Context) error
	close func(ctx context.Context) error
}

// openStorage подключает хранилище по storage.driver. Для postgres применяются миграции.
func openStorage(ctx context.Context, cfg config.Storage, logger *slog.Logger) (*userStore, error) {
	const op = "storefront.openStorage"

	switch cfg.Driver {
	case storage.DriverPostgres:
		db, err := repository.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		logger.Info("postgres storage ready")
		return &userStore{
			repo:  db,
			ready: func(ctx context.Context) error { return repository.CheckDatabaseReady(ctx, db) },
			close: func(context.Context) error { return db.Close() },
		}, nil
	case storage.DriverMongo:
		db, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		logger.Info("mongo storage ready", slog.String("database", cfg.MongoDatabase))
		return &userStore{repo: db, ready: db.Ping, close: db.Close}, nil
	case storage.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return &userStore{repo: memory.New(), close: func(context.Context) error { return nil }}, nil
	}
	return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Driver)
}
