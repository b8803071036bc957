package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/indoormap-backend/internal/http/response"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/services"
)

type FloorMapHandlerConfig struct {
	UploadDir      string
	UploadMaxBytes int64
}

type FloorMapHandler struct {
	log     *logger.Logger
	maps    services.FloorMapService
	preview services.MapPreviewService
	cfg     FloorMapHandlerConfig
}

func NewFloorMapHandler(
	log *logger.Logger,
	maps services.FloorMapService,
	preview services.MapPreviewService,
	cfg FloorMapHandlerConfig,
) *FloorMapHandler {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	return &FloorMapHandler{
		log:     log.With("handler", "FloorMapHandler"),
		maps:    maps,
		preview: preview,
		cfg:     cfg,
	}
}

type ratioRequest struct {
	Ratio float64 `json:"ratio"`
}

// GET /api/map
func (h *FloorMapHandler) List(c *gin.Context) {
	rows, err := h.maps.List(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondList(c, rows)
}

// GET /api/map/all
func (h *FloorMapHandler) All(c *gin.Context) {
	rows, err := h.maps.List(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondAll(c, rows)
}

// POST /api/map (multipart: name, assetId, image)
func (h *FloorMapHandler) Create(c *gin.Context) {
	in, err := h.readForm(c, true)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.maps.Create(requestDBC(c), in)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondCreated(c, row)
}

// GET /api/map/:id
func (h *FloorMapHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.maps.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// PUT /api/map/:id (multipart: name, assetId, image optional)
func (h *FloorMapHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	in, err := h.readForm(c, false)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.maps.Update(requestDBC(c), id, in)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// PUT /api/map/:id/ratio
func (h *FloorMapHandler) SetRatio(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	var req ratioRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.maps.SetRatio(requestDBC(c), id, req.Ratio)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// DELETE /api/map/:id
func (h *FloorMapHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	res, err := h.maps.Delete(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/map/:id/chokePoint
func (h *FloorMapHandler) ListChokePoints(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	rows, err := h.maps.ListChokePoints(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondList(c, rows)
}

// PUT /api/map/:id/chokePoint/:chokePointId/position
func (h *FloorMapHandler) UpdateChokePointPosition(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	chokePointID, err := pathID(c, "chokePointId")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	var req positionRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.maps.UpdateChokePointPosition(requestDBC(c), id, chokePointID, req.X, req.Y)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// GET /api/map/:id/preview.png?maxSide=
func (h *FloorMapHandler) Preview(c *gin.Context) {
	if h.preview == nil {
		response.RespondAPIError(c, h.log, apierr.NotFound("map preview is disabled"))
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	buf, err := h.preview.RenderPreview(requestDBC(c), id, queryInt(c, "maxSide", services.DefaultPreviewSide))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *FloorMapHandler) readForm(c *gin.Context, requireImage bool) (services.FloorMapInput, error) {
	var in services.FloorMapInput
	limitBody(c.Writer, c.Request, h.cfg.UploadMaxBytes)
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return in, multipartError(err)
	}
	in.Name = strings.TrimSpace(c.PostForm("name"))
	assetID, err := formUUID(c, "assetId")
	if err != nil {
		return in, err
	}
	in.AssetID = assetID

	fh, err := c.FormFile("image")
	if err != nil {
		if requireImage {
			return in, apierr.MissingParameter("image is required")
		}
		return in, nil
	}
	path, err := saveImageUpload(fh, h.cfg.UploadDir)
	if err != nil {
		return in, err
	}
	in.ImagePath = path
	return in, nil
}
