package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OkayAnshul/Voyager-sub006/internal/service"
	"github.com/OkayAnshul/Voyager-sub006/pkg/response"
)

// StateHandler exposes the authoritative current state and tracking control
type StateHandler struct {
	tracking *service.TrackingService
}

// NewStateHandler creates a new state handler
func NewStateHandler(tracking *service.TrackingService) *StateHandler {
	return &StateHandler{tracking: tracking}
}

// Get handles GET /api/v1/state
func (h *StateHandler) Get(c *gin.Context) {
	response.Success(c, h.tracking.CurrentState())
}

// Summary handles GET /api/v1/state/summary
func (h *StateHandler) Summary(c *gin.Context) {
	summary, err := h.tracking.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to build summary", err)
		return
	}
	response.Success(c, summary)
}

// Start handles POST /api/v1/tracking/start
func (h *StateHandler) Start(c *gin.Context) {
	if err := h.tracking.StartTracking(c.Request.Context()); err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to start tracking", err)
		return
	}
	response.Success(c, gin.H{"tracking": true})
}

// Stop handles POST /api/v1/tracking/stop
func (h *StateHandler) Stop(c *gin.Context) {
	if err := h.tracking.StopTracking(c.Request.Context()); err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to stop tracking", err)
		return
	}
	response.Success(c, gin.H{"tracking": false})
}
