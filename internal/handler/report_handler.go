package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatev/fitclub-api/internal/service"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
	"github.com/ignatev/fitclub-api/pkg/response"
)

// ReportHandler exposes attendance reporting endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Attendance godoc
// @Summary Attendance report per program
// @Tags Reports
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param format query string false "json, csv, or pdf"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance [get]
func (h *ReportHandler) Attendance(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}

	format := service.ReportFormat(c.DefaultQuery("format", string(service.FormatJSON)))
	if format == service.FormatJSON {
		rows, err := h.reports.Attendance(c.Request.Context(), from, to)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, rows, nil)
		return
	}

	data, contentType, err := h.reports.Export(c.Request.Context(), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("attendance_%s_%s.%s", from.Format("2006-01-02"), to.Format("2006-01-02"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "dates must be in YYYY-MM-DD form")
	}
	return date, nil
}
