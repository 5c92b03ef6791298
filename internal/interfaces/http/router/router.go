// Package router 提供 HTTP 路由配置
package router

import (
	"llm-observability-api/internal/application/ratelimit"
	"llm-observability-api/internal/config"
	"llm-observability-api/internal/interfaces/http/handler"
	"llm-observability-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由挂载所需的全部处理器
type Handlers struct {
	Health  *handler.HealthHandler
	Ingest  *handler.IngestHandler
	Metrics *handler.MetricsHandler
	Rollup  *handler.RollupHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  *ratelimit.Limiter
}

// New 创建新的路由器
func New(cfg *config.Config, handlers Handlers, limiter *ratelimit.Limiter) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
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

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API v1 路由组
	v1 := r.engine.Group("/v1")
	{
		// 采集路由，上报侧启用限流
		ingest := v1.Group("/ingest")
		ingest.Use(middleware.RateLimit(r.limiter))
		{
			ingest.POST("/metrics", r.handlers.Ingest.SubmitMetric)

			events := ingest.Group("/events")
			{
				events.POST("/security", r.handlers.Ingest.SubmitSecurityEvent)
				events.POST("/routing", r.handlers.Ingest.SubmitRoutingDecision)
				events.POST("/cache", r.handlers.Ingest.SubmitCacheStat)
				events.POST("/pii", r.handlers.Ingest.SubmitPIIEvent)
			}
		}

		// 看板查询路由
		metrics := v1.Group("/metrics")
		{
			metrics.GET("/dashboard", r.handlers.Metrics.Dashboard)
			metrics.GET("/kpis", r.handlers.Metrics.KPIs)
			metrics.GET("/cost-by-model", r.handlers.Metrics.CostByModel)
			metrics.GET("/latency-trend", r.handlers.Metrics.LatencyTrend)
			metrics.GET("/request-volume", r.handlers.Metrics.RequestVolume)
			metrics.GET("/error-rate", r.handlers.Metrics.ErrorRate)
			metrics.GET("/tokens-per-second", r.handlers.Metrics.TokensPerSecond)
			metrics.GET("/models", r.handlers.Metrics.Models)
			metrics.GET("/user-roles", r.handlers.Metrics.UserRoles)
			metrics.GET("/recent-requests", r.handlers.Metrics.RecentRequests)
			metrics.GET("/realtime", r.handlers.Metrics.Realtime)
		}

		// 汇总任务路由
		rollups := v1.Group("/rollups")
		{
			rollups.POST("/daily", r.handlers.Rollup.TriggerDaily)
		}
	}
}
