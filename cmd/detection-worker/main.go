// Package main 检测任务 Worker 入口
// 消费检测任务流，调用识别服务并把结果写回报价
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"movecrm-api/internal/app"
	"movecrm-api/internal/config"
	"movecrm-api/internal/infrastructure/messaging"
	"movecrm-api/pkg/logger"
	"movecrm-api/pkg/tracer"

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
	log := logger.FromContext(ctx)
	log.Info("starting detection-worker", "env", cfg.App.Env)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "detection-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	dl, cleanup, err := app.InitializeDataLayer(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize data layer", err)
	}
	defer cleanup()

	core := app.InitializeCore(cfg, dl)

	consumerName := cfg.Messaging.Consumer
	if consumerName == "" {
		consumerName = hostnameConsumerName()
	}

	consumer := messaging.NewConsumer(dl.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.Stream(cfg.Messaging.Stream),
		Group:        cfg.Messaging.ConsumerGroup,
		ConsumerName: consumerName,
		BlockTimeout: cfg.Messaging.BlockTimeout,
	})

	consumer.RegisterHandler(messaging.MsgTypeDetectionJob, core.Pipeline.Process)

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	log.Info("detection-worker started",
		"stream", cfg.Messaging.Stream,
		"group", cfg.Messaging.ConsumerGroup,
		"consumer", consumerName,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down detection-worker...")
	consumer.Stop()
	log.Info("detection-worker exited")
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
