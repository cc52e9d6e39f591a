package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/application/alert"
	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/notification"
	"github.com/shopsync/backend/internal/domain/reconciliation"
	"github.com/shopsync/backend/internal/infrastructure/cache"
	"github.com/shopsync/backend/internal/infrastructure/config"
	"github.com/shopsync/backend/internal/infrastructure/ecommerce"
	"github.com/shopsync/backend/internal/infrastructure/persistence"
	"github.com/shopsync/backend/internal/infrastructure/ratelimit"
	"github.com/shopsync/backend/internal/infrastructure/scheduler"
	"github.com/shopsync/backend/internal/infrastructure/telemetry"
	"github.com/shopsync/backend/internal/interfaces/http/handler"
)

// application holds the wired sync core
type application struct {
	db          *persistence.Database
	windowStore *cache.WindowStore
	limiter     *ratelimit.Limiter

	schedules     *persistence.GormScheduleRepository
	jobs          *persistence.GormJobRepository
	logs          *persistence.GormSyncLogRepository
	notifications notification.Repository

	scheduler *scheduler.JobScheduler
	logger    *zap.Logger
}

func (a *application) syncHandler() *handler.SyncHandler {
	return handler.NewSyncHandler(a.scheduler, a.jobs, a.schedules, a.logs, a.limiter)
}

func (a *application) close() {
	if err := a.windowStore.Close(); err != nil {
		a.logger.Error("Error closing rate window store", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
	}
}

// buildApp connects the stores and wires the sync components together
func buildApp(ctx context.Context, cfg *config.Config, meterProvider *telemetry.MeterProvider, log *zap.Logger) (*application, error) {
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	storeFactory := cache.NewWindowStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	windowStore, err := storeFactory.CreateStore(ctx, cfg.RateLimit.Backend)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &application{
		db:            db,
		windowStore:   windowStore,
		schedules:     persistence.NewGormScheduleRepository(db.DB),
		jobs:          persistence.NewGormJobRepository(db.DB),
		logs:          persistence.NewGormSyncLogRepository(db.DB),
		notifications: persistence.NewGormNotificationRepository(db.DB),
		logger:        log,
	}
	if err := app.wire(cfg, meterProvider); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (a *application) wire(cfg *config.Config, meterProvider *telemetry.MeterProvider) error {
	log := a.logger

	limiter, err := ratelimit.NewLimiter(a.windowStore, rateLimitConfig(cfg.RateLimit), log.Named("ratelimit"))
	if err != nil {
		return err
	}
	a.limiter = limiter

	platforms, err := newPlatformRegistry(cfg, log)
	if err != nil {
		return err
	}

	emitter, err := alert.NewEmitter(a.notifications, alert.Config{
		HighValueThreshold: cfg.Alert.HighValueThreshold,
		NotificationTTL:    cfg.Alert.NotificationTTL,
	}, log.Named("alert"))
	if err != nil {
		return err
	}

	var syncMetrics *telemetry.SyncMetrics
	if meterProvider.IsEnabled() {
		syncMetrics, err = telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
			Meter:  meterProvider.Meter("shopsync/sync"),
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("create sync metrics: %w", err)
		}
	}

	schedCfg := schedulerConfig(cfg.Scheduler)
	executor, err := scheduler.NewExecutor(schedCfg, scheduler.ExecutorDeps{
		Jobs:        a.jobs,
		Logs:        a.logs,
		Platforms:   platforms,
		Credentials: persistence.NewGormCredentialStore(a.db.DB),
		Orders:      persistence.NewGormOrderSnapshotRepository(a.db.DB),
		Products:    persistence.NewGormProductSnapshotRepository(a.db.DB),
		Limiter:     limiter,
		Engine: reconciliation.NewEngine(reconciliation.Options{
			DefaultLowStockThreshold: cfg.Alert.DefaultLowStockThreshold,
		}),
		Emitter: emitter,
		Metrics: syncMetrics,
	}, log.Named("executor"))
	if err != nil {
		return err
	}

	retryOpts := []scheduler.RetryOption{}
	schedulerOpts := []scheduler.JobSchedulerOption{}
	if syncMetrics != nil {
		retryOpts = append(retryOpts, scheduler.WithRetryMetrics(syncMetrics))
		schedulerOpts = append(schedulerOpts, scheduler.WithSchedulerMetrics(syncMetrics))
	}

	retries, err := scheduler.NewRetryCoordinator(schedCfg, a.jobs, a.schedules, emitter, limiter.Window(), log.Named("retry"), retryOpts...)
	if err != nil {
		return err
	}

	a.scheduler, err = scheduler.NewJobScheduler(schedCfg, a.schedules, a.jobs, executor, retries, log.Named("scheduler"), schedulerOpts...)
	return err
}

// newPlatformRegistry registers an adapter for every enabled platform
func newPlatformRegistry(cfg *config.Config, log *zap.Logger) (*ecommerce.Registry, error) {
	var platforms []integration.EcommercePlatform

	if cfg.Shopee.Enabled {
		shopeeCfg := ecommerce.NewShopeeConfig(cfg.Shopee.PartnerID, cfg.Shopee.PartnerKey)
		if cfg.Shopee.APIBaseURL != "" {
			shopeeCfg.APIBaseURL = cfg.Shopee.APIBaseURL
		}
		if cfg.Shopee.TimeoutSeconds > 0 {
			shopeeCfg.TimeoutSeconds = cfg.Shopee.TimeoutSeconds
		}
		if cfg.Shopee.PageSize > 0 {
			shopeeCfg.PageSize = cfg.Shopee.PageSize
		}
		adapter, err := ecommerce.NewShopeeAdapter(shopeeCfg, log.Named("shopee"))
		if err != nil {
			return nil, fmt.Errorf("create shopee adapter: %w", err)
		}
		platforms = append(platforms, adapter)
	}

	if cfg.TikTokShop.Enabled {
		tiktokCfg := ecommerce.NewTikTokShopConfig(cfg.TikTokShop.AppKey, cfg.TikTokShop.AppSecret)
		if cfg.TikTokShop.APIBaseURL != "" {
			tiktokCfg.APIBaseURL = cfg.TikTokShop.APIBaseURL
		}
		if cfg.TikTokShop.TimeoutSeconds > 0 {
			tiktokCfg.TimeoutSeconds = cfg.TikTokShop.TimeoutSeconds
		}
		if cfg.TikTokShop.PageSize > 0 {
			tiktokCfg.PageSize = cfg.TikTokShop.PageSize
		}
		adapter, err := ecommerce.NewTikTokShopAdapter(tiktokCfg, log.Named("tiktokshop"))
		if err != nil {
			return nil, fmt.Errorf("create tiktokshop adapter: %w", err)
		}
		platforms = append(platforms, adapter)
	}

	if len(platforms) == 0 {
		log.Warn("No platform adapters enabled; sync jobs will fail with a permanent error")
	}
	return ecommerce.NewRegistry(platforms...), nil
}

func rateLimitConfig(c config.RateLimitConfig) ratelimit.Config {
	return ratelimit.Config{
		Window: c.Window,
		Ceilings: map[integration.PlatformCode]int{
			integration.PlatformCodeShopee:     c.ShopeeCeiling,
			integration.PlatformCodeTikTokShop: c.TikTokShopCeiling,
		},
		DefaultCeiling: c.DefaultCeiling,
		KeyPrefix:      c.KeyPrefix,
	}
}

func schedulerConfig(c config.SchedulerConfig) scheduler.Config {
	return scheduler.Config{
		Enabled:           c.Enabled,
		TickInterval:      c.TickInterval,
		MaxConcurrentJobs: c.MaxConcurrentJobs,
		QueueSize:         c.QueueSize,
		JobTimeout:        c.JobTimeout,
		MaxRetries:        c.MaxRetries,
		RetryBaseDelay:    c.RetryBaseDelay,
		RetryMaxDelay:     c.RetryMaxDelay,
		ChunkSize:         c.ChunkSize,
		ChunkPause:        c.ChunkPause,
		DueBatchSize:      c.DueBatchSize,
		OrderLookback:     c.OrderLookback,
	}
}
