package handler

import (
	"context"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/service"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
)

type congestionData struct {
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	Type *int     `json:"type"`
	Time *int64   `json:"time"`
}

// CongestionHandler stores a driver's congestion report
type CongestionHandler struct {
	congestions *service.CongestionService
}

// NewCongestionHandler creates a new congestion handler
func NewCongestionHandler(congestions *service.CongestionService) *CongestionHandler {
	return &CongestionHandler{congestions: congestions}
}

// Handle replies nothing on success
func (h *CongestionHandler) Handle(ctx context.Context, req *Request) (any, error) {
	var data congestionData
	if err := req.Bind(&data); err != nil {
		return nil, err
	}
	if data.Lat == nil || data.Lon == nil || data.Type == nil || data.Time == nil {
		return nil, missingArgs()
	}

	p := spatial.Point{Lat: *data.Lat, Lon: *data.Lon}
	_, err := h.congestions.Report(ctx, models.CongestionType(*data.Type), p, *data.Time)
	return nil, err
}

type deleteCongestionData struct {
	ID   *int64 `json:"id"`
	Time *int64 `json:"time"`
}

// DeleteCongestionHandler removes a congestion that has cleared
type DeleteCongestionHandler struct {
	congestions *service.CongestionService
}

// NewDeleteCongestionHandler creates a new delete congestion handler
func NewDeleteCongestionHandler(congestions *service.CongestionService) *DeleteCongestionHandler {
	return &DeleteCongestionHandler{congestions: congestions}
}

// Handle replies nothing on success
func (h *DeleteCongestionHandler) Handle(ctx context.Context, req *Request) (any, error) {
	var data deleteCongestionData
	if err := req.Bind(&data); err != nil {
		return nil, err
	}
	if data.ID == nil {
		return nil, missingArgs()
	}
	return nil, h.congestions.Delete(ctx, *data.ID)
}
