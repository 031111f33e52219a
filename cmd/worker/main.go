package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/bootstrap"
	"github.com/landscape-rescale/internal/config"
	"github.com/landscape-rescale/internal/pkg/logger"
	"github.com/landscape-rescale/internal/pkg/metrics"
	"github.com/landscape-rescale/internal/repository/cache"
	redisRepo "github.com/landscape-rescale/internal/repository/redis"
	"github.com/landscape-rescale/internal/worker"
	"github.com/landscape-rescale/internal/worker/rescale"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if !cfg.Worker.Enabled {
		fmt.Println("Worker is disabled in configuration. Set RESCALE_WORKER_ENABLED=true to enable.")
		os.Exit(0)
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.Log.Level, "rescale-worker")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Rescale Worker",
		zap.String("consumer_group", cfg.Worker.ConsumerGroup),
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.Int("unit_kinds", len(cfg.UnitKinds)),
		zap.String("output_dir", cfg.Output.Dir))

	// 3. Pipeline: sources, layers, writers, run catalog
	pipeline, err := bootstrap.NewPipeline(cfg, metrics.NewCollector("rescale"), log)
	if err != nil {
		log.Fatal("Failed to build rescale pipeline", zap.Error(err))
	}
	defer pipeline.Close()

	// 4. Connect to Redis
	redisClient, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	// API кеширует таблицы по run id: повторный прогон должен их сбросить
	if pipeline.Store != nil {
		pipeline.UseCase.WithResultsCache(cache.NewCacheRepository(redisClient))
	}

	// 5. Workers
	streamRepo := redisRepo.NewStreamRepository(redisClient.Client(), log)
	rescaleWorker := rescale.NewRescaleWorker(streamRepo, pipeline.UseCase, rescale.Config{
		ConsumerGroup: cfg.Worker.ConsumerGroup,
		BatchSize:     cfg.Worker.BatchSize,
		ReadTimeout:   cfg.Worker.StreamReadTimeout,
		Concurrency:   cfg.Worker.Concurrency,
		ClaimIdle:     cfg.Worker.ClaimIdle,
	}, log)

	workerManager := worker.NewWorkerManager(worker.DefaultShutdownTimeout, log)
	workerManager.Register(rescaleWorker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerManager.Start(ctx); err != nil {
		log.Fatal("Failed to start workers", zap.Error(err))
	}

	// 6. Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info("Received shutdown signal")

	// Stop без отмены ctx: текущий прогон дописывает артефакты
	if err := workerManager.Stop(); err != nil {
		log.Error("Error stopping workers", zap.Error(err))
		cancel()
	}

	log.Info("Worker shutdown complete")
}
