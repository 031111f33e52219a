package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/bootstrap"
	"github.com/landscape-rescale/internal/config"
	httpDelivery "github.com/landscape-rescale/internal/delivery/http"
	"github.com/landscape-rescale/internal/delivery/http/handler"
	"github.com/landscape-rescale/internal/pkg/logger"
	"github.com/landscape-rescale/internal/pkg/metrics"
	"github.com/landscape-rescale/internal/repository/cache"
	redisRepo "github.com/landscape-rescale/internal/repository/redis"
	"github.com/landscape-rescale/internal/usecase"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.Log.Level, "rescale-api")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Landscape Rescale API",
		zap.String("env", cfg.Server.Env),
		zap.String("server_addr", cfg.GetServerAddr()),
		zap.String("store_driver", cfg.Store.Driver))

	// 3. Open run catalog (API always reads from it)
	resultStore, err := bootstrap.OpenStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open result store", zap.Error(err))
	}
	defer func() {
		if err := resultStore.Close(); err != nil {
			log.Error("Failed to close result store", zap.Error(err))
		}
	}()

	// 4. Connect to Redis (run requests + results cache)
	redisClient, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	// 5. Health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := resultStore.Health(ctx); err != nil {
		log.Fatal("Result store health check failed", zap.Error(err))
	}
	if err := redisClient.Health(ctx); err != nil {
		log.Fatal("Redis health check failed", zap.Error(err))
	}
	log.Info("All connections healthy")

	// 6. Repositories and use cases
	collector := metrics.NewCollector("rescale")
	streamRepo := redisRepo.NewStreamRepository(redisClient.Client(), log)
	cacheRepo := cache.NewCacheRepository(redisClient)

	requestUC := usecase.NewRunRequestUseCase(streamRepo, log)
	resultsUC := usecase.NewResultsUseCase(resultStore, cacheRepo, cfg.Cache.ResultsTTL, log)

	// 7. HTTP
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthChecker{
		"store": resultStore,
		"redis": redisClient,
	}, log)
	runHandler := handler.NewRunHandler(requestUC, resultsUC, log)

	server := httpDelivery.NewServer(cfg, collector, log, healthHandler, runHandler)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started successfully", zap.String("address", cfg.GetServerAddr()))

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	log.Info("Server stopped successfully")
}
