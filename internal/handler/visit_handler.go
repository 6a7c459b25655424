package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/repository"
	"github.com/OkayAnshul/Voyager-sub006/pkg/response"
)

// VisitHandler handles HTTP requests for visits
type VisitHandler struct {
	visits *repository.VisitRepository
}

// NewVisitHandler creates a new visit handler
func NewVisitHandler(visits *repository.VisitRepository) *VisitHandler {
	return &VisitHandler{visits: visits}
}

// List handles GET /api/v1/visits
func (h *VisitHandler) List(c *gin.Context) {
	var filter models.VisitFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	visits, total, err := h.visits.GetVisits(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get visits", err)
		return
	}

	response.Success(c, gin.H{
		"data":  visits,
		"total": total,
	})
}

// Get handles GET /api/v1/visits/:id
func (h *VisitHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid visit ID", err)
		return
	}

	v, err := h.visits.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get visit", err)
		return
	}
	if v == nil {
		response.Error(c, http.StatusNotFound, "Visit not found", nil)
		return
	}

	response.Success(c, v)
}
