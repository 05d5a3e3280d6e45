package db

import (
	"github.com/labstack/echo/v4"
)

// IdentityMiddleware copies the authenticated caller, as set on the echo
// context by the auth middleware, into the request context so repositories
// can scope their transactions to it.
func IdentityMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := extractIdentity(c)
			if id.UserID != "" {
				ctx := WithIdentity(c.Request().Context(), id)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

func extractIdentity(c echo.Context) Identity {
	uid, _ := c.Get("user_id").(string)
	role, _ := c.Get("user_role").(string)
	if uid == "" {
		return Identity{}
	}
	return Identity{UserID: uid, Role: role}
}
