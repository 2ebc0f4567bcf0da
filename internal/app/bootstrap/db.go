// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/indexes"
	"github.com/dalemusser/stratamembers/internal/app/system/metrics"
	"github.com/dalemusser/stratamembers/internal/app/system/postal"
	"github.com/dalemusser/stratamembers/internal/app/system/redisclient"
	"github.com/dalemusser/stratamembers/internal/app/system/seeding"
	"github.com/dalemusser/stratamembers/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB and the optional Redis cache, and builds the
// postal lookup client on top of them.
//
// WAFFLE calls this after configuration is loaded but before EnsureSchema and
// Startup. A Redis outage at startup is logged and lookups run uncached.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	// Configure MongoDB connection pool
	poolCfg := wafflemongo.DefaultPoolConfig()
	if appCfg.MongoMaxPoolSize > 0 {
		poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
	}
	if appCfg.MongoMinPoolSize > 0 {
		poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
	}

	client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, poolCfg)
	if err != nil {
		return DBDeps{}, err
	}

	db := client.Database(appCfg.MongoDatabase)

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
		zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
	)

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		Splitter:      address.NewSplitter(address.WithLooseFallback(appCfg.AddressLooseFallback)),
		Metrics:       metrics.New(),
	}

	rc, err := redisclient.New(ctx, appCfg.RedisURL)
	switch {
	case err != nil:
		logger.Warn("redis unavailable, postal lookups will not be cached", zap.Error(err))
	case rc != nil:
		deps.Redis = rc
		logger.Info("connected to Redis")
	}

	if appCfg.PostalAPIBaseURL != "" {
		opts := []postal.Option{postal.WithMetrics(deps.Metrics)}
		if deps.Redis != nil {
			opts = append(opts, postal.WithCache(postal.NewRedisCache(deps.Redis, appCfg.PostalCacheTTL)))
		}
		deps.Postal = postal.New(appCfg.PostalAPIBaseURL, appCfg.PostalTimeout, logger, opts...)
		logger.Info("postal lookup enabled",
			zap.String("base_url", appCfg.PostalAPIBaseURL),
			zap.Bool("cached", deps.Redis != nil),
		)
	}

	return deps, nil
}

// EnsureSchema attaches validators, reconciles indexes, and seeds the admin
// operator and sample members.
//
// The context has a timeout based on coreCfg.IndexBootTimeout.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	// Validators first so indexes are created on existing collections.
	logger.Info("ensuring collections and validators")
	if err := validators.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure validators", zap.Error(err))
		return err
	}

	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure indexes", zap.Error(err))
		return err
	}

	logger.Info("seeding default data")
	seedCfg := seeding.Config{
		Admin: seeding.AdminConfig{
			LoginID:  appCfg.SeedAdminLogin,
			Password: appCfg.SeedAdminPassword,
			FullName: appCfg.SeedAdminName,
		},
		SampleMembers: appCfg.SeedSampleMembers,
	}
	if err := seeding.SeedAll(ctx, db, seedCfg, logger); err != nil {
		logger.Error("failed to seed default data", zap.Error(err))
		return err
	}

	logger.Info("database schema ensured successfully")
	return nil
}
