package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request and stores a request scoped
// logger in the user context so services can use zerolog.Ctx.
func RequestLogger(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()

		reqLogger := logger.With().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Logger()
		c.SetUserContext(reqLogger.WithContext(c.UserContext()))

		err := c.Next()
		if err != nil {
			// Let the app error handler write the response so the status is final.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		event := reqLogger.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = reqLogger.Error().Err(err)
		case status >= fiber.StatusBadRequest:
			event = reqLogger.Warn()
		}
		event.
			Int("status", status).
			Dur("duration", time.Since(started)).
			Msg("http request")

		return nil
	}
}
