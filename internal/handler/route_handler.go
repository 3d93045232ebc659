package handler

import (
	"context"

	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/service"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
)

// RouteData carries an ordered list of waypoints, both ways on the wire
type RouteData struct {
	Route []spatial.Point `json:"route"`
}

// StatusReply acknowledges a computed route
type StatusReply struct {
	Status string `json:"status"`
}

// CalculateRouteHandler computes a route around known jams
type CalculateRouteHandler struct {
	routes *service.RouteService
}

// NewCalculateRouteHandler creates a new calculate route handler
func NewCalculateRouteHandler(routes *service.RouteService) *CalculateRouteHandler {
	return &CalculateRouteHandler{routes: routes}
}

// Handle replies {status: "done"}
func (h *CalculateRouteHandler) Handle(ctx context.Context, req *Request) (any, error) {
	var data RouteData
	if err := req.Bind(&data); err != nil {
		return nil, err
	}
	if len(data.Route) < 2 {
		return nil, protocol.Validation(protocol.MsgNothingToRoute)
	}
	if _, err := h.routes.Calculate(ctx, req.Client, data.Route); err != nil {
		return nil, err
	}
	return StatusReply{Status: "done"}, nil
}

// RefreshRouteHandler delivers the client's current route
type RefreshRouteHandler struct {
	routes *service.RouteService
}

// NewRefreshRouteHandler creates a new refresh route handler
func NewRefreshRouteHandler(routes *service.RouteService) *RefreshRouteHandler {
	return &RefreshRouteHandler{routes: routes}
}

// Handle replies {route: [{lat, lon}]}
func (h *RefreshRouteHandler) Handle(ctx context.Context, req *Request) (any, error) {
	points, err := h.routes.Fetch(ctx, req.Client)
	if err != nil {
		return nil, err
	}
	return RouteData{Route: points}, nil
}

// DeleteRouteHandler drops the client's route
type DeleteRouteHandler struct {
	routes *service.RouteService
}

// NewDeleteRouteHandler creates a new delete route handler
func NewDeleteRouteHandler(routes *service.RouteService) *DeleteRouteHandler {
	return &DeleteRouteHandler{routes: routes}
}

// Handle replies nothing
func (h *DeleteRouteHandler) Handle(ctx context.Context, req *Request) (any, error) {
	return nil, h.routes.Delete(ctx, req.Client)
}
