package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// GatewayAuthMiddleware checks the bearer token the API gateway presents.
// The raw token without the "Bearer " prefix is accepted too.
func GatewayAuthMiddleware(expectedToken string) fiber.Handler {
	expected := []byte(expectedToken)

	return func(c *fiber.Ctx) error {
		logger := zerolog.Ctx(c.UserContext())

		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			logger.Warn().Str("path", c.Path()).Msg("gateway token missing")
			return fiber.NewError(fiber.StatusUnauthorized, "gateway authentication token missing")
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			logger.Warn().Str("path", c.Path()).Msg("invalid gateway token")
			return fiber.NewError(fiber.StatusUnauthorized, "invalid gateway authentication token")
		}
		return c.Next()
	}
}
