// Package main 报价过期清扫器入口
// 周期扫描超过有效期的 pending/approved 报价并置为 expired
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"movecrm-api/internal/app"
	"movecrm-api/internal/config"
	"movecrm-api/pkg/logger"

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

	dl, cleanup, err := app.InitializeDataLayer(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize data layer", err)
	}
	defer cleanup()

	core := app.InitializeCore(cfg, dl)

	interval := cfg.Quote.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	log.Info("quote-sweeper started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sweep := func() {
		expired, err := core.Assembler.ExpireStale(ctx)
		if err != nil {
			logger.Error(ctx, "sweep failed", err)
			return
		}
		if expired > 0 {
			log.Info("expired stale quotes", "count", expired)
		}
	}

	// 启动时先清一轮，避免等待整个周期
	sweep()

	for {
		select {
		case <-ticker.C:
			sweep()
		case <-quit:
			log.Info("quote-sweeper exited")
			return
		}
	}
}
