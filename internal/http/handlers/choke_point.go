package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/indoormap-backend/internal/http/response"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/services"
)

type ChokePointHandler struct {
	log         *logger.Logger
	chokePoints services.ChokePointService
	importer    services.ChokePointImporter
	// csvMaxBytes caps the multipart body of a CSV import; 0 disables the cap.
	csvMaxBytes int64
}

func NewChokePointHandler(
	log *logger.Logger,
	chokePoints services.ChokePointService,
	importer services.ChokePointImporter,
	csvMaxBytes int64,
) *ChokePointHandler {
	return &ChokePointHandler{
		log:         log.With("handler", "ChokePointHandler"),
		chokePoints: chokePoints,
		importer:    importer,
		csvMaxBytes: csvMaxBytes,
	}
}

type setMapRequest struct {
	MapID *uuid.UUID `json:"mapId"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
}

type positionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GET /api/chokePoint
func (h *ChokePointHandler) List(c *gin.Context) {
	rows, err := h.chokePoints.List(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondList(c, rows)
}

// GET /api/chokePoint/all
func (h *ChokePointHandler) All(c *gin.Context) {
	rows, err := h.chokePoints.List(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondAll(c, rows)
}

// POST /api/chokePoint
func (h *ChokePointHandler) Create(c *gin.Context) {
	var in services.ChokePointInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.chokePoints.Create(requestDBC(c), in)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondCreated(c, row)
}

// POST /api/chokePoint/csv
func (h *ChokePointHandler) ImportCSV(c *gin.Context) {
	limitBody(c.Writer, c.Request, h.csvMaxBytes)
	if err := c.Request.ParseMultipartForm(8 << 20); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			response.RespondAPIError(c, h.log, apierr.MissingParameter("file is required"))
			return
		}
		response.RespondAPIError(c, h.log, multipartError(err))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondAPIError(c, h.log, apierr.MissingParameter("file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondAPIError(c, h.log, apierr.Validation(fmt.Errorf("open upload: %w", err)))
		return
	}
	defer f.Close()

	rows, err := h.importer.ImportCSV(requestDBC(c), f)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	h.log.Info("chokePoint csv imported", "file", fh.Filename, "rows", len(rows))
	response.RespondList(c, rows)
}

// GET /api/chokePoint/:id
func (h *ChokePointHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.chokePoints.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// PUT /api/chokePoint/:id
func (h *ChokePointHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	var in services.ChokePointInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.chokePoints.Update(requestDBC(c), id, in)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// POST /api/chokePoint/:id/map
func (h *ChokePointHandler) SetMap(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	var req setMapRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.chokePoints.SetMap(requestDBC(c), id, req.MapID, req.X, req.Y)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// POST /api/chokePoint/:id/unmap
func (h *ChokePointHandler) UnsetMap(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.chokePoints.UnsetMap(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// PUT /api/chokePoint/:id/position
func (h *ChokePointHandler) SetPosition(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	var req positionRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	row, err := h.chokePoints.SetPosition(requestDBC(c), id, req.X, req.Y)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, row)
}

// DELETE /api/chokePoint/:id
func (h *ChokePointHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	res, err := h.chokePoints.Delete(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, res)
}
