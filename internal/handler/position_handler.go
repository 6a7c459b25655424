package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/repository"
	"github.com/OkayAnshul/Voyager-sub006/internal/service"
	"github.com/OkayAnshul/Voyager-sub006/pkg/response"
)

// PositionHandler handles HTTP requests for the position stream
type PositionHandler struct {
	tracking *service.TrackingService
	repo     *repository.PositionRepository
	cfg      config.DetectionConfig
}

// NewPositionHandler creates a new position handler
func NewPositionHandler(tracking *service.TrackingService, repo *repository.PositionRepository, cfg config.DetectionConfig) *PositionHandler {
	return &PositionHandler{tracking: tracking, repo: repo, cfg: cfg}
}

// ingestRequest is the raw fix shape accepted from sensor collaborators.
// Coordinates are pointers so a fix on the equator or prime meridian binds;
// zero is a valid coordinate, absent is not.
type ingestRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Timestamp int64    `json:"timestamp"`
	Accuracy  float64  `json:"accuracy"`
	Speed     float64  `json:"speed"`
	Altitude  float64  `json:"altitude"`
	Bearing   float64  `json:"bearing"`
	Activity  string   `json:"activity"`
}

// Ingest handles POST /api/v1/positions
func (h *PositionHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid position payload", err)
		return
	}

	if req.Timestamp == 0 {
		req.Timestamp = time.Now().Unix()
	}

	p := models.Position{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Timestamp: req.Timestamp,
		Accuracy:  req.Accuracy,
		Speed:     req.Speed,
		Altitude:  req.Altitude,
		Bearing:   req.Bearing,
		Activity:  req.Activity,
	}

	accepted, err := h.tracking.ProcessPosition(c.Request.Context(), p, h.cfg)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to process position", err)
		return
	}

	response.Success(c, gin.H{"accepted": accepted})
}

// List handles GET /api/v1/positions
func (h *PositionHandler) List(c *gin.Context) {
	var filter models.PositionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	positions, total, err := h.repo.GetPositions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get positions", err)
		return
	}

	response.Success(c, gin.H{
		"data":  positions,
		"total": total,
	})
}
