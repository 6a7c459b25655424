package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/handler"
	"github.com/OkayAnshul/Voyager-sub006/internal/middleware"
)

// Handlers bundles the HTTP handlers mounted by the router
type Handlers struct {
	Positions *handler.PositionHandler
	Places    *handler.PlaceHandler
	Visits    *handler.VisitHandler
	State     *handler.StateHandler
	Detection *handler.DetectionHandler
}

// SetupRouter wires middleware and routes
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	limiter := middleware.NewRateLimiter(120, time.Minute)
	r.Use(limiter.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Voyager backend is running",
		})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/positions", h.Positions.List)
		api.GET("/places", h.Places.List)
		api.GET("/places/:id", h.Places.Get)
		api.GET("/places/:id/visits", h.Places.Visits)
		api.GET("/visits", h.Visits.List)
		api.GET("/visits/:id", h.Visits.Get)
		api.GET("/state", h.State.Get)
		api.GET("/state/summary", h.State.Summary)
		api.GET("/validate", h.Detection.Validate)

		// Mutating routes require a valid token
		authed := api.Group("")
		authed.Use(middleware.Auth(cfg.JWTSecret))
		{
			authed.POST("/positions", h.Positions.Ingest)
			authed.PATCH("/places/:id", h.Places.Update)
			authed.DELETE("/places/:id", h.Places.Delete)
			authed.POST("/tracking/start", h.State.Start)
			authed.POST("/tracking/stop", h.State.Stop)
			authed.POST("/detect", h.Detection.Detect)
		}
	}

	return r
}
