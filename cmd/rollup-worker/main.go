// Package main 日汇总任务执行器入口（rollup-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm-observability-api/internal/application/rollup"
	"llm-observability-api/internal/config"
	"llm-observability-api/internal/infrastructure/messaging"
	"llm-observability-api/internal/infrastructure/persistence/postgres"
	"llm-observability-api/internal/infrastructure/persistence/redis"
	"llm-observability-api/pkg/logger"
	"llm-observability-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "rollup-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	txMgr := postgres.NewTxManager(pgClient)
	metricRepo := postgres.NewMetricRepository(pgClient)
	eventRepo := postgres.NewEventRepository(pgClient)
	statRepo := postgres.NewStatRepository(pgClient)

	rollupService := rollup.NewService(metricRepo, eventRepo, statRepo, txMgr)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamRollup,
		Group:        messaging.ConsumerGroupRollupWorker,
		ConsumerName: hostnameConsumerName(),
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
		Backoff:      cfg.Messaging.RedisStream.RetryBackoff,
	})

	consumer.RegisterHandler(messaging.MessageTypeRollupDaily, func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.RollupJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		date, err := time.ParseInLocation("2006-01-02", payload.Date, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid rollup date %q: %w", payload.Date, err)
		}

		stat, err := rollupService.Run(msgCtx, date)
		if err != nil {
			return err
		}

		logger.Info(msgCtx, "daily rollup completed",
			"job_id", payload.JobID,
			"date", payload.Date,
			"total_requests", stat.TotalRequests,
			"triggered_by", payload.TriggeredBy,
		)
		return nil
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	log := logger.FromContext(ctx)
	log.Info("rollup-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("rollup-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
