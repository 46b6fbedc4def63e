package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/basicrecords/moodjournal/internal/domain"
	"github.com/basicrecords/moodjournal/internal/metrics"
)

// requestLogger logs one line per request and records its latency. Errors
// are rendered here so the logged status matches the response.
func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		latency := time.Since(start)
		status := c.Response().StatusCode()
		metrics.ObserveHTTP(c.Method(), c.Route().Path, status, latency)
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency))
		return nil
	}
}

// errorHandler maps domain errors onto HTTP statuses.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "internal server error"

		var fiberErr *fiber.Error
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &fiberErr):
			status, message = fiberErr.Code, fiberErr.Message
		case errors.As(err, &validationErr):
			status, message = fiber.StatusBadRequest, validationErr.Error()
		case errors.Is(err, domain.ErrInvalidInput):
			status, message = fiber.StatusBadRequest, err.Error()
		case errors.Is(err, domain.ErrNotFound):
			status, message = fiber.StatusNotFound, err.Error()
		case errors.Is(err, domain.ErrConflict):
			status, message = fiber.StatusConflict, err.Error()
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{"error": message})
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
