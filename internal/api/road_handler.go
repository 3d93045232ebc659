package api

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/traffic-backend-go/internal/middleware"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/pkg/response"
)

// RoadHandler handles HTTP requests for road speed limits
type RoadHandler struct {
	store *repository.Store
}

// NewRoadHandler creates a new road handler
func NewRoadHandler(store *repository.Store) *RoadHandler {
	return &RoadHandler{store: store}
}

// MaxSpeedRequest is the body of PUT /roads/:id/maxspeed
type MaxSpeedRequest struct {
	MaxSpeed int `json:"maxspeed" binding:"required,min=1,max=300"`
}

// GetRoad handles GET /api/v1/roads/:id
func (h *RoadHandler) GetRoad(c *gin.Context) {
	id, ok := roadID(c)
	if !ok {
		return
	}

	road, err := h.store.Roads.GetRoad(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if road == nil {
		response.NotFound(c, "Road not found")
		return
	}

	response.Success(c, road)
}

// FixMaxSpeed handles PUT /api/v1/roads/:id/maxspeed
func (h *RoadHandler) FixMaxSpeed(c *gin.Context) {
	id, ok := roadID(c)
	if !ok {
		return
	}

	var req MaxSpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	found, err := h.store.Roads.FixMaxSpeed(c.Request.Context(), id, req.MaxSpeed)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if !found {
		response.NotFound(c, "Road not found")
		return
	}

	slog.Info("speed limit fixed", "road", id, "maxspeed", req.MaxSpeed, "operator", operatorName(c))
	h.respondRoad(c, id)
}

// ReleaseMaxSpeed handles DELETE /api/v1/roads/:id/maxspeed
func (h *RoadHandler) ReleaseMaxSpeed(c *gin.Context) {
	id, ok := roadID(c)
	if !ok {
		return
	}

	found, err := h.store.Roads.ReleaseMaxSpeed(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if !found {
		response.NotFound(c, "Road not found")
		return
	}

	slog.Info("speed limit released", "road", id, "operator", operatorName(c))
	h.respondRoad(c, id)
}

func (h *RoadHandler) respondRoad(c *gin.Context, id int64) {
	road, err := h.store.Roads.GetRoad(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, road)
}

func roadID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid road id")
		return 0, false
	}
	return id, true
}

func operatorName(c *gin.Context) string {
	if claims := middleware.ClaimsFrom(c); claims != nil {
		return claims.Name
	}
	return ""
}
