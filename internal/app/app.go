// Package app 负责装配应用依赖
// 按 数据层 -> 应用层 -> 接口层 的顺序手工构造，替代代码生成注入
package app

import (
	"context"
	"time"

	"movecrm-api/internal/application/aggregate"
	"movecrm-api/internal/application/detectionflow"
	"movecrm-api/internal/application/directory"
	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/application/pricing"
	"movecrm-api/internal/application/quoteflow"
	"movecrm-api/internal/application/ratelimit"
	"movecrm-api/internal/config"
	"movecrm-api/internal/infrastructure/detection"
	"movecrm-api/internal/infrastructure/messaging"
	"movecrm-api/internal/infrastructure/persistence/postgres"
	"movecrm-api/internal/infrastructure/persistence/redis"
	"movecrm-api/internal/interfaces/http/handler"
	"movecrm-api/internal/interfaces/http/router"
)

// DataLayer 数据层依赖容器
type DataLayer struct {
	PgClient      *postgres.Client
	TxManager     *postgres.TxManager
	TenantContext *postgres.TenantContext
	TenantRepo    *postgres.TenantRepository
	UserRepo      *postgres.UserRepository
	CatalogRepo   *postgres.CatalogRepository
	RuleRepo      *postgres.PricingRuleRepository
	QuoteRepo     *postgres.QuoteRepository
	JobRepo       *postgres.DetectionJobRepository

	RedisClient *redis.Client
	Cache       *redis.Cache
	Counter     *redis.Counter

	Producer *messaging.Producer
}

// InitializeDataLayer 初始化数据层
func InitializeDataLayer(cfg *config.Config) (*DataLayer, func(), error) {
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		_ = pgClient.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = redisClient.Close()
		_ = pgClient.Close()
	}

	dl := &DataLayer{
		PgClient:      pgClient,
		TxManager:     postgres.NewTxManager(pgClient),
		TenantContext: postgres.NewTenantContext(pgClient),
		TenantRepo:    postgres.NewTenantRepository(pgClient),
		UserRepo:      postgres.NewUserRepository(pgClient),
		CatalogRepo:   postgres.NewCatalogRepository(pgClient),
		RuleRepo:      postgres.NewPricingRuleRepository(pgClient),
		QuoteRepo:     postgres.NewQuoteRepository(pgClient),
		JobRepo:       postgres.NewDetectionJobRepository(pgClient),
		RedisClient:   redisClient,
		Cache:         redis.NewCache(redisClient),
		Counter:       redis.NewCounter(redisClient),
		Producer:      messaging.NewProducer(redisClient.Redis(), messaging.Stream(cfg.Messaging.Stream), cfg.Messaging.MaxLen),
	}
	return dl, cleanup, nil
}

// CoreServices 应用层服务容器
type CoreServices struct {
	Directory *directory.Directory
	Guard     *guard.Guard
	Limiter   *ratelimit.Limiter
	Assembler *quoteflow.Assembler
	Pipeline  *detectionflow.Pipeline
	Detector  *detection.Client
}

// InitializeCore 在数据层之上装配应用层服务
func InitializeCore(cfg *config.Config, dl *DataLayer) *CoreServices {
	dir := directory.NewDirectory(
		dl.TenantRepo,
		dl.CatalogRepo,
		dl.RuleRepo,
		dl.Cache,
		cfg.Cache.TenantTTL,
		directoryDefaults(cfg),
	)
	g := guard.NewGuard(dir)
	limiter := ratelimit.NewLimiter(dl.Counter, cfg.Security.RateLimit.KeyPrefix)
	assembler := quoteflow.NewAssembler(
		limiter,
		aggregate.NewAggregator(),
		pricing.NewCalculator(),
		dl.QuoteRepo,
		dl.TxManager,
		dl.TenantContext,
		cfg.Quote.ExpiryDays,
	)
	detector := detection.NewClient(&cfg.Detection)
	pipeline := detectionflow.NewPipeline(g, detector, dl.Producer, dl.JobRepo, dl.QuoteRepo, assembler)

	return &CoreServices{
		Directory: dir,
		Guard:     g,
		Limiter:   limiter,
		Assembler: assembler,
		Pipeline:  pipeline,
		Detector:  detector,
	}
}

// directoryDefaults 把全局限流与识别默认值折算成目录默认配置
func directoryDefaults(cfg *config.Config) directory.Defaults {
	window := time.Duration(cfg.Security.RateLimit.WindowSeconds) * time.Second
	return directory.Defaults{
		Window:                window,
		PublicMaxRequests:     cfg.Security.RateLimit.PublicMaxRequests,
		PublicMaxPerOrigin:    cfg.Security.RateLimit.PublicMaxPerOrigin,
		StaffMaxRequests:      cfg.Security.RateLimit.StaffMaxRequests,
		StaffMaxPerOrigin:     cfg.Security.RateLimit.StaffMaxPerOrigin,
		DetectionThreshold:    cfg.Quote.DefaultDetectionThreshold,
		UnknownItemVolume:     cfg.Quote.DefaultUnknownItemVolume,
		UnknownItemLaborHours: cfg.Quote.DefaultUnknownItemLaborHours,
	}
}

// InitializeApp 初始化 API 网关应用
func InitializeApp(_ context.Context, cfg *config.Config) (*router.Router, func(), error) {
	dl, cleanup, err := InitializeDataLayer(cfg)
	if err != nil {
		return nil, nil, err
	}
	core := InitializeCore(cfg, dl)

	handlers := router.Handlers{
		Health:      handler.NewHealthHandler(dl.PgClient, dl.RedisClient),
		Auth:        handler.NewAuthHandler(cfg.Security.JWT, dl.UserRepo),
		PublicQuote: handler.NewPublicQuoteHandler(core.Guard, core.Assembler, dl.QuoteRepo),
		Quote:       handler.NewQuoteHandler(core.Assembler, dl.QuoteRepo),
		Catalog:     handler.NewCatalogHandler(dl.CatalogRepo, core.Directory),
		PricingRule: handler.NewPricingRuleHandler(dl.RuleRepo, core.Directory),
		Detection:   handler.NewDetectionHandler(core.Pipeline, dl.JobRepo),
		Tenant:      handler.NewTenantHandler(dl.TenantRepo, core.Directory),
	}

	return router.New(cfg, core.Guard, core.Limiter, handlers), cleanup, nil
}
