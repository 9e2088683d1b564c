package measurement

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kingprasham/dicom-c-sub004/internal/platform/middleware"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/orthanc"
	"github.com/kingprasham/dicom-c-sub004/pkg/pagination"
)

// MaxBatchSize caps the number of instances accepted by one batch request.
const MaxBatchSize = 100

type Handler struct {
	extractor *Extractor
}

func NewHandler(extractor *Extractor) *Handler {
	return &Handler{extractor: extractor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/measurements")
	g.GET("/extract", h.Extract)
	g.POST("/extract", h.ExtractBatch)
	if h.extractor.Repository() != nil {
		g.GET("/history/:instanceId", h.History)
	}
}

type batchRequest struct {
	InstanceIDs []string `json:"instanceIds"`
	StudyID     string   `json:"studyId"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func failed(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, errorResponse{Success: false, Error: msg})
}

func (h *Handler) Extract(c echo.Context) error {
	instanceID := middleware.SanitizeString(c.QueryParam("instanceId"))
	if instanceID == "" {
		return failed(c, "Instance ID required")
	}
	if !orthanc.ValidID(instanceID) {
		return failed(c, "Invalid instance ID")
	}
	studyID := middleware.SanitizeString(c.QueryParam("studyId"))
	if studyID != "" && !orthanc.ValidID(studyID) {
		return failed(c, "Invalid study ID")
	}
	return c.JSON(http.StatusOK, h.extractor.Extract(c.Request().Context(), instanceID, studyID))
}

func (h *Handler) ExtractBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return failed(c, "Invalid request body")
	}

	ids := make([]string, 0, len(req.InstanceIDs))
	for _, id := range req.InstanceIDs {
		if id = middleware.SanitizeString(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return failed(c, "Instance IDs required")
	}
	if len(ids) > MaxBatchSize {
		return failed(c, "Too many instance IDs")
	}
	for _, id := range ids {
		if !orthanc.ValidID(id) {
			return failed(c, "Invalid instance ID")
		}
	}
	studyID := middleware.SanitizeString(req.StudyID)
	if studyID != "" && !orthanc.ValidID(studyID) {
		return failed(c, "Invalid study ID")
	}

	return c.JSON(http.StatusOK, h.extractor.ExtractBatch(c.Request().Context(), ids, studyID))
}

func (h *Handler) History(c echo.Context) error {
	instanceID := c.Param("instanceId")
	if instanceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "instance id is required")
	}
	if !orthanc.ValidID(instanceID) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid instance id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.extractor.History(c.Request().Context(), instanceID, pg.Limit, pg.Offset)
	if err != nil {
		if errors.Is(err, ErrNoRepository) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load extraction history")
	}
	if items == nil {
		items = []*ExtractionRecord{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}
