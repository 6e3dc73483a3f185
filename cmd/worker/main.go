package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/feichai0017/document-summarizer/config"
	"github.com/feichai0017/document-summarizer/internal/app"
	"github.com/feichai0017/document-summarizer/pkg/logger"
	"github.com/feichai0017/document-summarizer/pkg/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// 初始化日志
	log, err := logger.FromConfig(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 创建文档服务
	application, err := app.New(ctx, cfg, log, app.Options{WithQueue: true})
	if err != nil {
		log.Fatal("Failed to initialize application", logger.Error(err))
	}
	defer application.Close()

	// 创建 worker
	workerCfg := &worker.Config{
		Redis: cfg.Redis,
		Queue: cfg.Queue,
	}
	documentWorker, err := worker.NewDocumentWorker(workerCfg, application.Service, application.Queue, log.Named("worker"))
	if err != nil {
		log.Fatal("Failed to create document worker", logger.Error(err))
	}

	// 启动 worker
	if err := documentWorker.Start(ctx); err != nil {
		log.Fatal("Failed to start worker", logger.Error(err))
	}

	// 等待中断信号
	<-ctx.Done()

	// 优雅关闭
	log.Info("Shutting down worker...")
	documentWorker.Stop()
	log.Info("Worker stopped")
}
