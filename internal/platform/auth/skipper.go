package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths can be reached without a session: infrastructure probes and
// the sign-in flows.
var publicPaths = map[string]bool{
	"/health":          true,
	"/health/db":       true,
	"/auth/v1/signup":  true,
	"/auth/v1/token":   true,
	"/auth/v1/logout":  true,
	"/auth/v1/recover": true,
	"/auth/v1/reset":   true,
}

// The model-backed functions are callable anonymously.
const functionsPrefix = "/functions/v1/"

// AuthSkipper lets public paths through anonymously. Requests that matched no
// route (empty c.Path()) pass too, so they reach the router's 404.
func AuthSkipper(c echo.Context) bool {
	return c.Path() == "" || IsPublicPath(c.Path()) || IsPublicPath(c.Request().URL.Path)
}

func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, functionsPrefix)
}

// IsInfraPath reports probe endpoints that skip the public API key check too.
func IsInfraPath(path string) bool {
	return path == "/health" || path == "/health/db"
}
