package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/pkg/metrics"
	"github.com/landscape-rescale/internal/pkg/utils"
)

// Logger пишет access-лог и метрики запросов
func Logger(logger *zap.Logger, collector *metrics.Collector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		c.Locals(utils.LocalRequestStart, start)

		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// шаблон маршрута, а не путь: иначе run_id раздувает кардинальность
		route := c.Route().Path
		if collector != nil {
			collector.RecordAPIRequest(route, c.Method(), strconv.Itoa(status), duration)
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Debug("HTTP request", fields...)
		}

		return err
	}
}
