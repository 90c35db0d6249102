package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"yoma-api/blob"
	"yoma-api/config"
	"yoma-api/handlers"
	"yoma-api/lock"
	"yoma-api/logger"
	"yoma-api/providers/ssi"
	"yoma-api/providers/zlto"
	"yoma-api/services"
	"yoma-api/store"
	"yoma-api/store/memory"
	"yoma-api/store/postgres"
	"yoma-api/workers"
)

const slowQueryThreshold = 200 * time.Millisecond

// deps is everything a command needs, built once from the configuration.
type deps struct {
	store    store.Store
	services handlers.Services
	jobs     workers.Services
	locker   lock.Locker

	closers []func() error
}

func (d *deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

func openDatabase(cfg *config.Config, l zerolog.Logger) (*gorm.DB, error) {
	return postgres.Open(cfg.Database.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger.NewGormLogger(l, slowQueryThreshold))
}

func closeDatabase(db *gorm.DB) func() error {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	l := loggerFromContext(ctx)
	d := &deps{}

	switch cfg.Store {
	case config.StorePostgres:
		db, err := openDatabase(cfg, l)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, closeDatabase(db))
		d.store = postgres.New(db)
	default:
		l.Warn().Msg("using the in-memory store, data is lost on exit")
		d.store = memory.NewStore()
	}

	var client blob.Client
	switch cfg.Blob.Provider {
	case "s3":
		s3, err := blob.NewS3Client(ctx, blob.S3Config{
			Endpoint:        cfg.Blob.Endpoint,
			Region:          cfg.Blob.Region,
			AccessKeyID:     cfg.Blob.AccessKeyID,
			AccessKeySecret: cfg.Blob.AccessKeySecret,
			Bucket:          cfg.Blob.Bucket,
			PublicURL:       cfg.Blob.PublicURL,
		})
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("failed to initialize blob storage: %w", err)
		}
		client = s3
	default:
		client = blob.NewMemoryClient()
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			_ = d.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		d.closers = append(d.closers, rdb.Close)
		d.locker = lock.NewRedisLocker(rdb, "yoma:")
	} else {
		d.locker = lock.NewMemoryLocker()
	}

	zltoClient := zlto.New(zlto.Config{
		BaseURL:    cfg.Zlto.BaseURL,
		APIKey:     cfg.Zlto.APIKey,
		PartnerID:  cfg.Zlto.PartnerID,
		Timeout:    cfg.Zlto.Timeout,
		MaxRetries: cfg.Zlto.MaxRetries,
	})
	ssiClient := ssi.New(ssi.Config{
		BaseURL:    cfg.SSI.BaseURL,
		APIKey:     cfg.SSI.APIKey,
		Timeout:    cfg.SSI.Timeout,
		MaxRetries: cfg.SSI.MaxRetries,
	})

	ledger := services.LedgerConfig{
		BatchSize:  cfg.Jobs.BatchSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		StaleAfter: cfg.Jobs.LockTTL,
	}
	lookups := services.NewLookupService(d.store, cfg.Cache.Size, cfg.Cache.TTL)
	blobs := services.NewBlobService(d.store, client)
	orgs := services.NewOrganizationService(d.store, blobs)
	wallets := services.NewWalletService(d.store, zltoClient, ledger)
	rewards := services.NewRewardService(d.store, zltoClient, ledger)
	credentials := services.NewSSIService(d.store, lookups, ssiClient, ledger)
	opportunities := services.NewOpportunityService(d.store, orgs, lookups, cfg.Jobs.BatchSize)

	d.services = handlers.Services{
		Lookups:         lookups,
		Users:           services.NewUserService(d.store, wallets),
		Organizations:   orgs,
		Opportunities:   opportunities,
		MyOpportunities: services.NewMyOpportunityService(d.store, blobs, orgs, opportunities, rewards, credentials),
		Rewards:         rewards,
		Wallets:         wallets,
		Credentials:     credentials,
		Marketplace:     services.NewMarketplaceService(zltoClient, wallets, cfg.Cache.TTL),
		Analytics:       services.NewAnalyticsService(d.store, orgs),
	}
	d.jobs = workers.Services{
		Rewards:       rewards,
		Wallets:       wallets,
		Credentials:   credentials,
		Opportunities: opportunities,
	}
	return d, nil
}

func (d *deps) scheduler(cfg *config.Config, l zerolog.Logger) *workers.Scheduler {
	return workers.NewScheduler(d.locker, cfg.Jobs.LockTTL, l, workers.Jobs(cfg.Jobs, d.jobs)...)
}
