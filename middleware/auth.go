package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yoma-api/auth"
	"yoma-api/errs"
)

const identityKey = "identity"

// UserContextMiddleware reads the caller identity the gateway forwards in
// X-User-ID, X-User-Email and X-User-Roles. Requests without X-User-ID are
// anonymous; RequireUser rejects them where a caller is needed.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get("X-User-ID"))
		if raw == "" {
			return c.Next()
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "X-User-ID is not a valid id")
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		id := auth.Identity{
			UserID: userID,
			Email:  strings.ToLower(strings.TrimSpace(c.Get("X-User-Email"))),
			Roles:  roles,
		}
		c.Locals(identityKey, id)

		ctx := auth.WithIdentity(c.UserContext(), id)
		logger := zerolog.Ctx(ctx).With().Str("user_id", userID.String()).Logger()
		c.SetUserContext(logger.WithContext(ctx))
		return c.Next()
	}
}

// Identity returns the caller set by UserContextMiddleware.
func Identity(c *fiber.Ctx) (auth.Identity, bool) {
	id, ok := c.Locals(identityKey).(auth.Identity)
	return id, ok
}

// RequireUser rejects anonymous requests.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := Identity(c); !ok {
			return errs.ErrUnauthorized
		}
		return c.Next()
	}
}

// RequireRoles lets the request through when the caller has any of roles.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := Identity(c)
		if !ok {
			return errs.ErrUnauthorized
		}
		if !id.HasRole(roles...) {
			return errs.Forbidden("requires one of the roles %v", roles)
		}
		return c.Next()
	}
}
