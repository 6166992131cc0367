package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const userLocalsKey = "auth_user"

// RequireScopes returns a fiber middleware that validates the bearer
// token and checks every listed scope. Missing/invalid tokens yield 401,
// insufficient scopes 403. The authenticated user is stored in the
// request locals for handlers.
func (m *Manager) RequireScopes(scopes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		user, err := m.ParseToken(header[len(prefix):])
		if err != nil {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return fiber.NewError(fiber.StatusUnauthorized, "could not validate credentials")
		}

		for _, scope := range scopes {
			if !user.HasScope(scope) {
				return fiber.NewError(fiber.StatusForbidden, "not enough permissions")
			}
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

// UserFromCtx returns the authenticated user stored by RequireScopes.
func UserFromCtx(c *fiber.Ctx) (User, bool) {
	user, ok := c.Locals(userLocalsKey).(User)
	return user, ok
}
