package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/indoormap-backend/internal/http/response"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/services"
)

type LocationHandler struct {
	log       *logger.Logger
	locations services.LocationService
}

func NewLocationHandler(log *logger.Logger, locations services.LocationService) *LocationHandler {
	return &LocationHandler{log: log.With("handler", "LocationHandler"), locations: locations}
}

// GET /api/location
func (h *LocationHandler) List(c *gin.Context) {
	rows, err := h.locations.List(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondList(c, rows)
}

// GET /api/location/all
func (h *LocationHandler) All(c *gin.Context) {
	rows, err := h.locations.List(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondAll(c, rows)
}

// POST /api/location
func (h *LocationHandler) Create(c *gin.Context) {
	var in services.LocationInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.locations.Create(requestDBC(c), in)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondCreated(c, row)
}

// GET /api/location/:id
func (h *LocationHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.locations.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// PUT /api/location/:id
func (h *LocationHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	var in services.LocationInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.locations.Update(requestDBC(c), id, in)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// DELETE /api/location/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	res, err := h.locations.Delete(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/location/:id/chokePoint
func (h *LocationHandler) ListChokePoints(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	rows, err := h.locations.ListChokePoints(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondList(c, rows)
}
