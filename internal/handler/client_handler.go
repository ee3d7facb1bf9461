package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatev/fitclub-api/internal/models"
	"github.com/ignatev/fitclub-api/internal/service"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
	"github.com/ignatev/fitclub-api/pkg/response"
)

// ClientHandler exposes club member endpoints, including class booking.
type ClientHandler struct {
	clients  *service.ClientService
	bookings *service.BookingService
}

// NewClientHandler constructs handler.
func NewClientHandler(clients *service.ClientService, bookings *service.BookingService) *ClientHandler {
	return &ClientHandler{clients: clients, bookings: bookings}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Param search query string false "Search by name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	filter := models.ClientFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	clients, pagination, err := h.clients.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clients, pagination)
}

func (h *ClientHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	client, err := h.clients.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, client, nil)
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req service.ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	client, err := h.clients.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, client)
}

func (h *ClientHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	client, err := h.clients.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, client, nil)
}

func (h *ClientHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.clients.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Book godoc
// @Summary Book a class occurrence for a client
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path int true "Client id"
// @Param payload body service.BookRequest true "Occurrence key"
// @Success 201 {object} response.Envelope
// @Router /clients/{id}/book [post]
func (h *ClientHandler) Book(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	booking, err := h.bookings.Book(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Unbook godoc
// @Summary Cancel a client's booking
// @Tags Clients
// @Accept json
// @Param id path int true "Client id"
// @Param payload body service.BookRequest true "Occurrence key"
// @Success 204
// @Router /clients/{id}/book [delete]
func (h *ClientHandler) Unbook(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.bookings.Unbook(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Bookings godoc
// @Summary List a client's bookings
// @Tags Clients
// @Produce json
// @Param id path int true "Client id"
// @Success 200 {object} response.Envelope
// @Router /clients/{id}/bookings [get]
func (h *ClientHandler) Bookings(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	bookings, err := h.bookings.ListForClient(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}
