package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type JWTConfig struct {
	Tokens   *TokenIssuer
	Sessions SessionStore
	// Skipper marks routes that may be called anonymously. A valid token on
	// such a route still yields an authenticated session.
	Skipper middleware.Skipper
}

// JWTMiddleware resolves the bearer token into a Session and publishes the
// caller as "user_id" and "user_role" on the echo context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	skipper := cfg.Skipper
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			optional := skipper(c)
			raw, err := bearerToken(c)

			var sess *Session
			if err == nil {
				sess, err = resolve(c, cfg, raw)
			}
			if err != nil {
				if !optional {
					return err
				}
				sess = Anonymous()
			}

			if sess.Authenticated() {
				c.Set("user_id", sess.UserID)
				c.Set("user_role", sess.Role)
			}
			c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), sess)))
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		// browsers cannot set headers on a websocket handshake
		if c.IsWebSocket() {
			if tok := c.QueryParam("access_token"); tok != "" {
				return tok, nil
			}
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tok) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(tok), nil
}

func resolve(c echo.Context, cfg JWTConfig, raw string) (*Session, error) {
	claims, err := cfg.Tokens.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	rec, err := cfg.Sessions.Get(c.Request().Context(), claims.SessionID())
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
	}
	if rec == nil || rec.UserID != claims.Subject {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	}

	expires := rec.ExpiresAt
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(expires) {
		expires = claims.ExpiresAt.Time
	}
	if !expires.IsZero() && time.Now().After(expires) {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	}

	return &Session{
		State:     StateAuthenticated,
		ID:        rec.ID,
		UserID:    rec.UserID,
		Role:      rec.Role,
		ExpiresAt: expires,
	}, nil
}
