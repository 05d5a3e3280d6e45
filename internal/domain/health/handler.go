package health

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalia/portal/internal/domain/profile"
	"github.com/vitalia/portal/internal/platform/auth"
	"github.com/vitalia/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patients := api.Group("", auth.RequireRole(auth.RolePatient))
	patients.POST("/symptoms", h.LogSymptom)
	patients.GET("/symptoms", h.ListOwnSymptoms)
	patients.POST("/bmi", h.RecordBMI)
	patients.POST("/bmi/calculate", h.CalculateBMI)
	patients.GET("/bmi", h.ListOwnBMI)
	patients.POST("/vitals", h.RecordVitals)
	patients.GET("/vitals/latest", h.OwnLatestVitals)
	patients.GET("/vitals", h.ListOwnVitals)
	patients.GET("/dashboard", h.Dashboard)

	doctors := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctors.GET("/patients/:id/symptoms", h.ListPatientSymptoms)
	doctors.GET("/patients/:id/bmi", h.ListPatientBMI)
	doctors.GET("/patients/:id/vitals/latest", h.PatientLatestVitals)
	doctors.GET("/patients/:id/vitals", h.ListPatientVitals)
}

func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message)
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

// -- Symptom Logs --

func (h *Handler) LogSymptom(c echo.Context) error {
	id, err := profile.CallerID(c)
	if err != nil {
		return err
	}
	var in SymptomInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	log, err := h.svc.LogSymptom(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, log)
}

func (h *Handler) ListOwnSymptoms(c echo.Context) error {
	id, err := profile.CallerID(c)
	if err != nil {
		return err
	}
	return h.listSymptoms(c, id)
}

func (h *Handler) ListPatientSymptoms(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	return h.listSymptoms(c, id)
}

func (h *Handler) listSymptoms(c echo.Context, patientID uuid.UUID) error {
	pg := pagination.WithDefault(c, DefaultSymptomLimit)
	items, err := h.svc.ListSymptoms(c.Request().Context(), patientID, pg.Limit)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*SymptomLog{}
	}
	return c.JSON(http.StatusOK, items)
}

// -- BMI --

func (h *Handler) CalculateBMI(c echo.Context) error {
	var in BMIInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := ComputeBMI(in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) RecordBMI(c echo.Context) error {
	id, err := profile.CallerID(c)
	if err != nil {
		return err
	}
	var in BMIInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, res, err := h.svc.RecordBMI(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"record": rec,
		"result": res,
	})
}

func (h *Handler) ListOwnBMI(c echo.Context) error {
	id, err := profile.CallerID(c)
	if err != nil {
		return err
	}
	return h.listBMI(c, id)
}

func (h *Handler) ListPatientBMI(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	return h.listBMI(c, id)
}

func (h *Handler) listBMI(c echo.Context, patientID uuid.UUID) error {
	pg := pagination.WithDefault(c, DefaultBMILimit)
	items, err := h.svc.ListBMI(c.Request().Context(), patientID, pg.Limit)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*BMIRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

// -- Vitals --

func (h *Handler) RecordVitals(c echo.Context) error {
	id, err := profile.CallerID(c)
	if err != nil {
		return err
	}
	var v HealthVitals
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v.ID = uuid.Nil
	if err := h.svc.RecordVitals(c.Request().Context(), id, &v); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, &v)
}

func (h *Handler) OwnLatestVitals(c echo.Context) error {
	id, err := profile.CallerID(c)
	if err != nil {
		return err
	}
	return h.latestVitals(c, id)
}

func (h *Handler) PatientLatestVitals(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	return h.latestVitals(c, id)
}

// latestVitals renders JSON null when there are no readings.
func (h *Handler) latestVitals(c echo.Context, patientID uuid.UUID) error {
	v, err := h.svc.LatestVitals(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListOwnVitals(c echo.Context) error {
	id, err := profile.CallerID(c)
	if err != nil {
		return err
	}
	return h.listVitals(c, id)
}

func (h *Handler) ListPatientVitals(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	return h.listVitals(c, id)
}

func (h *Handler) listVitals(c echo.Context, patientID uuid.UUID) error {
	pg := pagination.WithDefault(c, DefaultVitalsLimit)
	items, err := h.svc.ListVitals(c.Request().Context(), patientID, pg.Limit)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*HealthVitals{}
	}
	return c.JSON(http.StatusOK, items)
}

// -- Dashboard --

func (h *Handler) Dashboard(c echo.Context) error {
	id, err := profile.CallerID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}
