package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatev/fitclub-api/internal/service"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
	"github.com/ignatev/fitclub-api/pkg/response"
)

// SchemaHandler exposes schedule schema lifecycle endpoints.
type SchemaHandler struct {
	schemas *service.SchemaService
}

// NewSchemaHandler constructs handler.
func NewSchemaHandler(schemas *service.SchemaService) *SchemaHandler {
	return &SchemaHandler{schemas: schemas}
}

// List godoc
// @Summary List schedule schemas
// @Tags Schemas
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schemas [get]
func (h *SchemaHandler) List(c *gin.Context) {
	schemas, err := h.schemas.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schemas, nil)
}

// Get godoc
// @Summary Get one schedule schema
// @Tags Schemas
// @Produce json
// @Param id path int true "Schema id"
// @Success 200 {object} response.Envelope
// @Router /schemas/{id} [get]
func (h *SchemaHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	schema, err := h.schemas.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schema, nil)
}

// Create godoc
// @Summary Create a schedule schema
// @Tags Schemas
// @Accept json
// @Produce json
// @Param payload body service.CreateSchemaRequest true "Schema payload"
// @Success 201 {object} response.Envelope
// @Router /schemas [post]
func (h *SchemaHandler) Create(c *gin.Context) {
	var req service.CreateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schema, err := h.schemas.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schema)
}

// Update godoc
// @Summary Update a schema: rename, activate, or (un)schedule for next week
// @Tags Schemas
// @Accept json
// @Produce json
// @Param id path int true "Schema id"
// @Param payload body service.UpdateSchemaRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /schemas/{id} [patch]
func (h *SchemaHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schema, err := h.schemas.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schema, nil)
}

// Delete godoc
// @Summary Delete an inactive schema
// @Tags Schemas
// @Param id path int true "Schema id"
// @Success 204
// @Router /schemas/{id} [delete]
func (h *SchemaHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.schemas.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Records godoc
// @Summary List a schema's records
// @Tags Schemas
// @Produce json
// @Param id path int true "Schema id"
// @Success 200 {object} response.Envelope
// @Router /schemas/{id}/records [get]
func (h *SchemaHandler) Records(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.schemas.GetRecords(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// IncludeRecords godoc
// @Summary Add records to a schema
// @Tags Schemas
// @Accept json
// @Produce json
// @Param id path int true "Schema id"
// @Param payload body service.IncludeRecordsRequest true "Record ids"
// @Success 200 {object} response.Envelope
// @Router /schemas/{id}/records [post]
func (h *SchemaHandler) IncludeRecords(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.IncludeRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	records, err := h.schemas.IncludeRecords(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// ExcludeRecords godoc
// @Summary Remove records from a schema, cancelling affected bookings
// @Tags Schemas
// @Accept json
// @Param id path int true "Schema id"
// @Param payload body service.ExcludeRecordsRequest true "Record ids"
// @Success 204
// @Router /schemas/{id}/records [delete]
func (h *SchemaHandler) ExcludeRecords(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ExcludeRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.schemas.ExcludeRecords(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
