package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalia/portal/internal/platform/auth"
	"github.com/vitalia/portal/internal/platform/blobstore"
	"github.com/vitalia/portal/pkg/pagination"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	self := api.Group("", auth.RequireAuth())
	self.GET("/me", h.GetMe)
	self.PUT("/me", h.UpdateMe)
	self.POST("/me/avatar", h.UploadAvatar)

	doctors := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctors.GET("/patients", h.ListPatients)
	doctors.GET("/patients/export", h.ExportPatients)
	doctors.GET("/patients/:id", h.GetPatient)
}

// CallerID returns the authenticated user's id.
func CallerID(c echo.Context) (uuid.UUID, error) {
	sess := auth.SessionFromContext(c.Request().Context())
	if !sess.Authenticated() {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(sess.UserID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid session subject")
	}
	return id, nil
}

func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "avatar must be 2MB or smaller")
	case errors.Is(err, blobstore.ErrInvalidContentType), errors.Is(err, blobstore.ErrMissingFileName):
		return echo.NewHTTPError(http.StatusBadRequest, "avatar must be a PNG, JPEG, GIF or WebP image")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) GetMe(c echo.Context) error {
	id, err := CallerID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	id, err := CallerID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdateSelf(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UploadAvatar(c echo.Context) error {
	id, err := CallerID(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > blobstore.MaxAvatarSize {
		return httpError(blobstore.ErrFileTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read file")
	}
	defer f.Close()

	// trust the bytes, not the declared header
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read file")
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return httpError(blobstore.ErrInvalidContentType)
	}

	p, err := h.svc.UploadAvatar(c.Request().Context(), id, blobstore.Object{
		FileName:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Body:        io.MultiReader(bytes.NewReader(head), f),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Profile{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ExportPatients(c echo.Context) error {
	data, err := h.svc.ExportRegistry(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	name := fmt.Sprintf("patients-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxMIME, data)
}
