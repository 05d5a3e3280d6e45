package insights

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the functions under g (normally /functions/v1).
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/analyze-risk", h.AnalyzeRisk)
	g.POST("/extract-clinical-data", h.ExtractClinicalData)
	g.POST("/smart-rundown", h.SmartRundown)
}

type analyzeRiskRequest struct {
	Vitals *Vitals `json:"vitals"`
}

type extractRequest struct {
	Notes string `json:"notes"`
}

type rundownRequest struct {
	PatientData *PatientSnapshot `json:"patientData"`
}

func (h *Handler) AnalyzeRisk(c echo.Context) error {
	var req analyzeRiskRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.AnalyzeRisk(c.Request().Context(), req.Vitals)
	if err != nil {
		return failFrom(c, err)
	}
	return succeed(c, res.Source, "risk", res.Value)
}

func (h *Handler) ExtractClinicalData(c echo.Context) error {
	var req extractRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.ExtractClinicalData(c.Request().Context(), req.Notes)
	if err != nil {
		return failFrom(c, err)
	}
	return succeed(c, res.Source, "extraction", res.Value)
}

func (h *Handler) SmartRundown(c echo.Context) error {
	var req rundownRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.SmartRundown(c.Request().Context(), req.PatientData)
	if err != nil {
		return failFrom(c, err)
	}
	return succeed(c, res.Source, "rundown", res.Value)
}

func succeed(c echo.Context, source Source, key string, value any) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"source":  source,
		key:       value,
	})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]any{"success": false, "error": msg})
}

func failFrom(c echo.Context, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return fail(c, http.StatusBadRequest, ve.Message)
	}
	return fail(c, http.StatusInternalServerError, err.Error())
}
