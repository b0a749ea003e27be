// Package router 提供 HTTP 路由配置
package router

import (
	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/application/ratelimit"
	"movecrm-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
)

// 限流端点类别，用于区分计数键和指标标签
const (
	endpointPublicLookup = "public_quote_lookup"
)

// RegisterPublicRoutes 注册挂件公开路由
// 提交路径不挂限流中间件：提交限流与聚合、计价同属组装器单次执行，
// 在中间件重复计数会把同一次提交记两笔
func RegisterPublicRoutes(public *gin.RouterGroup, g *guard.Guard, limiter *ratelimit.Limiter, handlers Handlers) {
	// 挂件初始化配置，Slug 在路径中，处理器自行解析
	public.GET("/tenant/:slug/config", handlers.PublicQuote.WidgetConfig)

	quote := public.Group("/quote")
	quote.Use(middleware.PublicTenant(g))
	{
		quote.POST("", handlers.PublicQuote.Submit)
		quote.GET("/:number", middleware.RateLimit(limiter, endpointPublicLookup), handlers.PublicQuote.GetByNumber)
	}
}

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, g *guard.Guard, handlers Handlers) {
	// 认证管理，登录前无 JWT，租户靠 Slug 解析
	auth := v1.Group("/auth")
	auth.Use(middleware.PublicTenant(g))
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/refresh", handlers.Auth.Refresh)
	}

	// 员工端点，JWT 声明的租户必须与 Slug 解析结果一致
	staff := v1.Group("")
	staff.Use(middleware.StaffTenant(g))
	{
		// 报价管理，审核与改动要求相应权限
		quotes := staff.Group("/quotes")
		{
			quotes.GET("", middleware.RequirePermission(middleware.PermQuoteRead), handlers.Quote.List)
			quotes.POST("", middleware.RequirePermission(middleware.PermQuoteWrite), handlers.Quote.Create)
			quotes.GET("/:qid", middleware.RequirePermission(middleware.PermQuoteRead), handlers.Quote.Get)
			quotes.POST("/:qid/approve", middleware.RequirePermission(middleware.PermQuoteReview), handlers.Quote.Approve)
			quotes.POST("/:qid/reject", middleware.RequirePermission(middleware.PermQuoteReview), handlers.Quote.Reject)
			quotes.POST("/:qid/recalculate", middleware.RequirePermission(middleware.PermQuoteWrite), handlers.Quote.Recalculate)

			// 行项管理
			quotes.POST("/:qid/items", middleware.RequirePermission(middleware.PermQuoteWrite), handlers.Quote.AddItems)
			quotes.DELETE("/:qid/items/:itemid", middleware.RequirePermission(middleware.PermQuoteWrite), handlers.Quote.RemoveItem)

			// 报价下的检测任务
			quotes.POST("/:qid/detections", middleware.RequirePermission(middleware.PermDetectionRun), handlers.Detection.Enqueue)
			quotes.GET("/:qid/detections", middleware.RequirePermission(middleware.PermQuoteRead), handlers.Detection.ListByQuote)
		}

		// 检测任务查询
		detections := staff.Group("/detections")
		{
			detections.GET("/:jid", middleware.RequirePermission(middleware.PermQuoteRead), handlers.Detection.Get)
		}

		// 物品目录管理
		catalog := staff.Group("/catalog")
		catalog.Use(middleware.RequirePermission(middleware.PermCatalogManage))
		{
			catalog.GET("", handlers.Catalog.List)
			catalog.POST("", handlers.Catalog.Create)
			catalog.GET("/:cid", handlers.Catalog.Get)
			catalog.PUT("/:cid", handlers.Catalog.Update)
			catalog.DELETE("/:cid", handlers.Catalog.Delete)
		}

		// 计价规则管理，仅管理员
		rules := staff.Group("/pricing-rules")
		rules.Use(middleware.RequirePermission(middleware.PermPricingManage))
		{
			rules.GET("", handlers.PricingRule.List)
			rules.POST("", handlers.PricingRule.Create)
			rules.GET("/:rid", handlers.PricingRule.Get)
			rules.PUT("/:rid", handlers.PricingRule.Update)
		}

		// 租户自助管理，仅管理员
		tenant := staff.Group("/tenant")
		tenant.Use(middleware.RequirePermission(middleware.PermTenantManage))
		{
			tenant.GET("", handlers.Tenant.GetCurrent)
			tenant.PUT("", handlers.Tenant.UpdateCurrent)
		}
	}
}
