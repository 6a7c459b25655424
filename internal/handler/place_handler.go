package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/repository"
	"github.com/OkayAnshul/Voyager-sub006/pkg/response"
)

// PlaceHandler handles HTTP requests for places
type PlaceHandler struct {
	places *repository.PlaceRepository
	visits *repository.VisitRepository
}

// NewPlaceHandler creates a new place handler
func NewPlaceHandler(places *repository.PlaceRepository, visits *repository.VisitRepository) *PlaceHandler {
	return &PlaceHandler{places: places, visits: visits}
}

// List handles GET /api/v1/places
func (h *PlaceHandler) List(c *gin.Context) {
	var filter models.PlaceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	places, total, err := h.places.GetPlaces(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get places", err)
		return
	}

	response.Success(c, gin.H{
		"data":  places,
		"total": total,
	})
}

// Get handles GET /api/v1/places/:id
func (h *PlaceHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid place ID", err)
		return
	}

	place, err := h.places.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get place", err)
		return
	}
	if place == nil {
		response.Error(c, http.StatusNotFound, "Place not found", nil)
		return
	}

	response.Success(c, place)
}

// updatePlaceRequest carries the user-editable place fields
type updatePlaceRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Update handles PATCH /api/v1/places/:id
func (h *PlaceHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid place ID", err)
		return
	}

	var req updatePlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid place payload", err)
		return
	}

	if req.Category != "" && !models.ValidCategory(req.Category) {
		response.Error(c, http.StatusBadRequest, "Unknown place category", nil)
		return
	}
	if req.Category == "" {
		req.Category = models.CategoryCustom
	}

	if err := h.places.UpdateMeta(c.Request.Context(), id, req.Name, req.Category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, http.StatusNotFound, "Place not found", nil)
			return
		}
		response.Error(c, http.StatusInternalServerError, "Failed to update place", err)
		return
	}

	response.Success(c, gin.H{"id": id})
}

// Delete handles DELETE /api/v1/places/:id -- the only path that removes a
// place; the consistency validator heals any state reference left behind
func (h *PlaceHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid place ID", err)
		return
	}

	if err := h.places.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, http.StatusNotFound, "Place not found", nil)
			return
		}
		response.Error(c, http.StatusInternalServerError, "Failed to delete place", err)
		return
	}

	response.Success(c, gin.H{"id": id})
}

// Visits handles GET /api/v1/places/:id/visits
func (h *PlaceHandler) Visits(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid place ID", err)
		return
	}

	var filter models.VisitFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	filter.PlaceID = id

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
