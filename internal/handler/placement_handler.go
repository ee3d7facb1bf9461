package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatev/fitclub-api/internal/service"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
	"github.com/ignatev/fitclub-api/pkg/response"
)

// PlacementHandler exposes room endpoints.
type PlacementHandler struct {
	placements *service.PlacementService
}

// NewPlacementHandler constructs handler.
func NewPlacementHandler(placements *service.PlacementService) *PlacementHandler {
	return &PlacementHandler{placements: placements}
}

func (h *PlacementHandler) List(c *gin.Context) {
	placements, err := h.placements.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, placements, nil)
}

func (h *PlacementHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	placement, err := h.placements.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, placement, nil)
}

func (h *PlacementHandler) Create(c *gin.Context) {
	var req service.PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	placement, err := h.placements.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, placement)
}

func (h *PlacementHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	placement, err := h.placements.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, placement, nil)
}

func (h *PlacementHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.placements.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
