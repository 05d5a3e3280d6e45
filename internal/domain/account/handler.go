package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vitalia/portal/internal/domain/profile"
	"github.com/vitalia/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the sign-in flows on g (normally /auth/v1).
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/signup", h.SignUp)
	g.POST("/token", h.Token)
	g.POST("/logout", h.Logout)
	g.POST("/recover", h.Recover)
	g.POST("/reset", h.Reset)
	g.GET("/session", h.Session, auth.RequireAuth())
}

// authError renders err as {"error": message} so clients can show it inline.
func authError(c echo.Context, err error) error {
	var ve *ValidationError
	var pve *profile.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message})
	case errors.As(err, &pve):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": pve.Message})
	case errors.Is(err, ErrEmailTaken):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "User already registered"})
	case errors.Is(err, ErrInvalidCredentials):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid login credentials"})
	case errors.Is(err, auth.ErrResetTokenInvalid):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": auth.ErrResetTokenInvalid.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
}

func (h *Handler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	sess, err := h.svc.SignUp(c.Request().Context(), req)
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Token(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	sess, err := h.svc.SignIn(c.Request().Context(), req)
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Logout(c echo.Context) error {
	h.svc.SignOut(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Recover(c echo.Context) error {
	var req RecoverRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	h.svc.Recover(c.Request().Context(), req.Email)
	return c.JSON(http.StatusOK, map[string]string{})
}

func (h *Handler) Reset(c echo.Context) error {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := h.svc.Reset(c.Request().Context(), req); err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{})
}

func (h *Handler) Session(c echo.Context) error {
	cur, err := h.svc.Current(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		}
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, cur)
}
