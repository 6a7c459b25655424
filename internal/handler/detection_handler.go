package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/service"
	"github.com/OkayAnshul/Voyager-sub006/internal/validator"
	"github.com/OkayAnshul/Voyager-sub006/pkg/response"
)

// DetectionHandler exposes the manual detection trigger and the consistency
// report
type DetectionHandler struct {
	detection *service.DetectionService
	validator *validator.Validator
	cfg       config.DetectionConfig
}

// NewDetectionHandler creates a new detection handler
func NewDetectionHandler(detection *service.DetectionService, v *validator.Validator, cfg config.DetectionConfig) *DetectionHandler {
	return &DetectionHandler{detection: detection, validator: v, cfg: cfg}
}

// Detect handles POST /api/v1/detect -- the explicit "run detection now"
// trigger, same contract as the scheduled path
func (h *DetectionHandler) Detect(c *gin.Context) {
	candidates, err := h.detection.RunDetection(c.Request.Context(), h.cfg)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Detection failed", err)
		return
	}

	response.Success(c, gin.H{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

// Validate handles GET /api/v1/validate, returning the diagnostic report
func (h *DetectionHandler) Validate(c *gin.Context) {
	report, err := h.validator.Validate(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Validation pass failed", err)
		return
	}

	response.Success(c, report)
}
