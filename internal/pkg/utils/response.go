package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/landscape-rescale/internal/pkg/errors"
)

// LocalRequestStart - ключ c.Locals со временем начала запроса (ставит middleware.Logger)
const LocalRequestStart = "request_start"

type SuccessResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Error *errors.AppError `json:"error"`
}

type Meta struct {
	Total    int     `json:"total"`
	Limit    int     `json:"limit,omitempty"`
	TimeMSec float64 `json:"time_ms,omitempty"`
}

// SendSuccess отдает данные; в meta дописывается время обработки, если известно начало запроса
func SendSuccess(c *fiber.Ctx, data interface{}, meta *Meta) error {
	if meta != nil {
		if start, ok := c.Locals(LocalRequestStart).(time.Time); ok {
			meta.TimeMSec = float64(time.Since(start).Microseconds()) / 1000
		}
	}
	return c.JSON(SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

// SendList - SendSuccess для коллекций
func SendList(c *fiber.Ctx, data interface{}, total, limit int) error {
	return SendSuccess(c, data, &Meta{Total: total, Limit: limit})
}

// SendAccepted - 202 для запросов, выполняемых воркером
func SendAccepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(SuccessResponse{Data: data})
}

// SendError отдает AppError из цепочки ошибок; остальное - 500 без деталей
func SendError(c *fiber.Ctx, err error) error {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.ErrInternalServer
	}
	return c.Status(appErr.StatusCode).JSON(ErrorResponse{Error: appErr})
}
