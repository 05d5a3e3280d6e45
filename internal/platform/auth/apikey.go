package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const APIKeyHeader = "apikey"

// APIKeyMiddleware requires the deployment's publishable key on every request
// except infrastructure probes and CORS preflight. An empty key disables the
// check.
func APIKeyMiddleware(key string) echo.MiddlewareFunc {
	want := []byte(key)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" || c.Request().Method == http.MethodOptions || IsInfraPath(c.Request().URL.Path) {
				return next(c)
			}
			got := extractAPIKey(c)
			if got == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing api key")
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}
			return next(c)
		}
	}
}

func extractAPIKey(c echo.Context) string {
	if k := c.Request().Header.Get(APIKeyHeader); k != "" {
		return strings.TrimSpace(k)
	}
	// websocket handshakes carry it as a query parameter
	return c.QueryParam(APIKeyHeader)
}
