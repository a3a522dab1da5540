package report

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medichain/medichain/internal/platform/ledger"
	"github.com/medichain/medichain/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/reports", h.UploadReport)
	api.GET("/reports", h.ListReports)
	api.GET("/reports/:patientId", h.GetReportsByPatient)
	api.GET("/reports/:patientId/summary", h.GetPatientSummary)
	api.GET("/reports/:patientId/trends", h.GetPatientTrends)
}

func (h *Handler) UploadReport(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No file uploaded"})
	}

	patientID := c.FormValue("patientId")
	hospitalID := c.FormValue("hospitalId")
	if patientID == "" || hospitalID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "patientId and hospitalId are required"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to open uploaded file"})
	}
	defer src.Close()

	record, err := h.svc.Upload(c.Request().Context(), UploadInput{
		PatientID:  patientID,
		HospitalID: hospitalID,
		Content:    src,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotConfigured):
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Hedera credentials not configured"})
		case errors.Is(err, ErrFileTooLarge):
			return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrMissingIdentifiers):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error":   "Failed to process file",
				"details": err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, record)
}

func (h *Handler) GetReportsByPatient(c echo.Context) error {
	patientID := c.Param("patientId")
	if patientID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "patientId is required"})
	}

	reports, err := h.svc.GetReportsByPatient(c.Request().Context(), patientID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Failed to fetch reports",
			"details": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"reports": reports,
	})
}

func (h *Handler) GetPatientSummary(c echo.Context) error {
	patientID := c.Param("patientId")
	if patientID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "patientId is required"})
	}

	summary, err := h.svc.GetPatientSummary(c.Request().Context(), patientID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Failed to build summary",
			"details": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetPatientTrends(c echo.Context) error {
	patientID := c.Param("patientId")
	if patientID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "patientId is required"})
	}

	series, err := h.svc.GetPatientTrends(c.Request().Context(), patientID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Failed to derive trends",
			"details": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "success",
		"metricSeries": series,
	})
}

func (h *Handler) ListReports(c echo.Context) error {
	pg := pagination.FromContext(c)
	reports, total, err := h.svc.ListReports(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reports, total, pg.Limit, pg.Offset))
}
