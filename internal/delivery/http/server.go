package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	fiberSwagger "github.com/swaggo/fiber-swagger"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/config"
	"github.com/landscape-rescale/internal/delivery/http/handler"
	"github.com/landscape-rescale/internal/delivery/http/middleware"
	"github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/pkg/metrics"
	"github.com/landscape-rescale/internal/pkg/utils"

	_ "github.com/landscape-rescale/docs"
)

// Server - HTTP API каталога прогонов на Fiber
type Server struct {
	app     *fiber.App
	config  *config.Config
	metrics *metrics.Collector
	logger  *zap.Logger

	healthHandler *handler.HealthHandler
	runHandler    *handler.RunHandler
}

func NewServer(
	cfg *config.Config,
	collector *metrics.Collector,
	logger *zap.Logger,
	healthHandler *handler.HealthHandler,
	runHandler *handler.RunHandler,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "Landscape Rescale",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: customErrorHandler(logger),
	})

	s := &Server{
		app:           app,
		config:        cfg,
		metrics:       collector,
		logger:        logger,
		healthHandler: healthHandler,
		runHandler:    runHandler,
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddlewares() {
	s.app.Use(middleware.Recovery(s.logger))
	s.app.Use(middleware.Logger(s.logger, s.metrics))
	s.app.Use(middleware.CORS(s.config.Server.CORSOrigins))
	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
}

func (s *Server) setupRoutes() {
	s.app.Get("/swagger/*", fiberSwagger.WrapHandler)
	s.app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}),
	))

	api := s.app.Group("/api/v1")

	api.Get("/health", s.healthHandler.Health)

	runs := api.Group("/runs")
	runs.Post("/", s.runHandler.SubmitRun)
	runs.Get("/", s.runHandler.ListRuns)
	runs.Get("/:run_id", s.runHandler.GetRun)
	runs.Get("/:run_id/indicators/:indicator/summaries/:kind", s.runHandler.GetSummaries)
	runs.Get("/:run_id/indicators/:indicator/accuracy", s.runHandler.GetAccuracy)
}

// App нужен тестам для app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	addr := s.config.GetServerAddr()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler - ошибки Fiber (404 маршрута, 405) в том же конверте, что и AppError
func customErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("HTTP Error",
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err))
		}

		appErr := errors.New("HTTP_ERROR", err.Error(), code, errors.KindData)
		if code >= fiber.StatusInternalServerError {
			appErr = errors.ErrInternalServer
		}
		return c.Status(code).JSON(utils.ErrorResponse{Error: appErr})
	}
}
