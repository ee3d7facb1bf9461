package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatev/fitclub-api/internal/service"
	"github.com/ignatev/fitclub-api/pkg/response"
)

// TimetableHandler exposes the public weekly timetable.
type TimetableHandler struct {
	timetable *service.TimetableService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(timetable *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{timetable: timetable}
}

// Get godoc
// @Summary Current week timetable
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.timetable.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}
