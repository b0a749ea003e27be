// Package router 提供 HTTP 路由配置
package router

import (
	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/application/ratelimit"
	"movecrm-api/internal/config"
	"movecrm-api/internal/interfaces/http/handler"
	"movecrm-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	PublicQuote *handler.PublicQuoteHandler
	Quote       *handler.QuoteHandler
	Catalog     *handler.CatalogHandler
	PricingRule *handler.PricingRuleHandler
	Detection   *handler.DetectionHandler
	Tenant      *handler.TenantHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	guard    *guard.Guard
	limiter  *ratelimit.Limiter
	handlers Handlers
}

// New 创建新的路由器
func New(cfg *config.Config, g *guard.Guard, limiter *ratelimit.Limiter, handlers Handlers) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		guard:    g,
		limiter:  limiter,
		handlers: handlers,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置全局中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	r.engine.GET("/health", r.handlers.Health.Health)
	r.engine.GET("/ready", r.handlers.Health.Ready)
	r.engine.GET("/live", r.handlers.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	RegisterPublicRoutes(r.engine.Group("/public"), r.guard, r.limiter, r.handlers)

	// API v1 路由组，员工端点要求 JWT
	v1 := r.engine.Group("/v1")
	v1.Use(middleware.Auth(middleware.AuthConfig{
		Secret:  r.cfg.Security.JWT.Secret,
		Issuer:  r.cfg.Security.JWT.Issuer,
		Enabled: true,
		SkipPaths: []string{
			"/v1/auth",
		},
	}))
	RegisterV1Routes(v1, r.guard, r.handlers)
}
