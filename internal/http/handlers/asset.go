package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/indoormap-backend/internal/http/response"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/services"
)

type AssetHandler struct {
	log    *logger.Logger
	assets services.AssetService
}

func NewAssetHandler(log *logger.Logger, assets services.AssetService) *AssetHandler {
	return &AssetHandler{log: log.With("handler", "AssetHandler"), assets: assets}
}

// GET /api/asset
func (h *AssetHandler) List(c *gin.Context) {
	rows, err := h.assets.List(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondList(c, rows)
}

// GET /api/asset/all
func (h *AssetHandler) All(c *gin.Context) {
	rows, err := h.assets.List(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondAll(c, rows)
}

// POST /api/asset
func (h *AssetHandler) Create(c *gin.Context) {
	var in services.AssetInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.assets.Create(requestDBC(c), in)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondCreated(c, row)
}

// GET /api/asset/:id
func (h *AssetHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.assets.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// PUT /api/asset/:id
func (h *AssetHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	var in services.AssetInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.assets.Update(requestDBC(c), id, in)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// DELETE /api/asset/:id
func (h *AssetHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	res, err := h.assets.Delete(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/asset/:id/map
func (h *AssetHandler) ListMaps(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	rows, err := h.assets.ListMaps(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondList(c, rows)
}

// GET /api/asset/:id/map/:mapId
func (h *AssetHandler) GetMap(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	mapID, err := pathID(c, "mapId")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.assets.GetMap(requestDBC(c), id, mapID)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// GET /api/asset/:id/location
func (h *AssetHandler) ListLocations(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	rows, err := h.assets.ListLocations(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondList(c, rows)
}

// GET /api/asset/:id/location/:locationId
func (h *AssetHandler) GetLocation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	locationID, err := pathID(c, "locationId")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.assets.GetLocation(requestDBC(c), id, locationID)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}
