// Package main 遥测网关服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm-observability-api/internal/application/aggregate"
	"llm-observability-api/internal/application/dashboard"
	"llm-observability-api/internal/application/ingest"
	"llm-observability-api/internal/application/pricing"
	"llm-observability-api/internal/application/ratelimit"
	"llm-observability-api/internal/config"
	"llm-observability-api/internal/infrastructure/messaging"
	"llm-observability-api/internal/infrastructure/persistence/postgres"
	"llm-observability-api/internal/infrastructure/persistence/redis"
	"llm-observability-api/internal/interfaces/http/handler"
	"llm-observability-api/internal/interfaces/http/router"
	"llm-observability-api/pkg/logger"
	"llm-observability-api/pkg/tracer"

	"github.com/joho/godotenv"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting metrics-gateway",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	// 数据层
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	if err := pgClient.AutoMigrate(); err != nil {
		logger.Fatal(ctx, "failed to migrate schema", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	metricRepo := postgres.NewMetricRepository(pgClient)
	eventRepo := postgres.NewEventRepository(pgClient)
	rateLimitRepo := postgres.NewRateLimitRepository(pgClient)

	// 采集侧
	table := pricing.NewTable(&cfg.Pricing)
	buffer := ingest.NewBuffer(cfg.Ingest, metricRepo)
	realtime := redis.NewRealtimeCounters(redisClient)
	ingestService := ingest.NewService(table, buffer, eventRepo, realtime)

	// 查询侧
	engine := aggregate.NewEngine(metricRepo, eventRepo, cfg.Dashboard.QueryTimeout, cfg.Dashboard.RecentLimit)
	dashCache := dashboard.NewCache(engine, redis.NewCache(redisClient), cfg.Dashboard.CacheTTL)

	// 限流器
	limiter := ratelimit.NewLimiter(cfg.RateLimit, redis.NewCounterStore(redisClient), rateLimitRepo)

	// 汇总任务投递
	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))

	r := router.New(cfg, router.Handlers{
		Health:  handler.NewHealthHandler(pgClient, redisClient),
		Ingest:  handler.NewIngestHandler(ingestService),
		Metrics: handler.NewMetricsHandler(dashCache, metricRepo, realtime),
		Rollup:  handler.NewRollupHandler(producer),
	}, limiter)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭：先停收流量，再排空采集缓冲
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	buffer.Stop()

	log.Info("server exited")
}
