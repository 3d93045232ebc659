package handler

import (
	"context"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/service"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
)

type updateData struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Time  *int64   `json:"time"`
	Speed *float64 `json:"speed"`
	BBox  flexInt  `json:"bbox"`
	Save  *bool    `json:"save"`
}

// TrafficItem is the reading of one strip on the wire
type TrafficItem struct {
	ID       int64 `json:"id"`
	MaxSpeed int   `json:"maxspeed"`
	Speed    int   `json:"speed"`
	Quality  int   `json:"quality"`
}

// CongestionItem is one congestion on the wire
type CongestionItem struct {
	ID   int64   `json:"id"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type int     `json:"type"`
	Time int64   `json:"time"`
}

// UpdateReply answers a telemetry update
type UpdateReply struct {
	Traffic     []TrafficItem    `json:"traffic"`
	Congestions []CongestionItem `json:"congestions"`
	Routing     bool             `json:"routing,omitempty"`
}

// UpdateHandler ingests telemetry and returns the surrounding traffic
type UpdateHandler struct {
	traffic *service.TrafficService
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(traffic *service.TrafficService) *UpdateHandler {
	return &UpdateHandler{traffic: traffic}
}

// Handle replies {traffic, congestions, routing?}
func (h *UpdateHandler) Handle(ctx context.Context, req *Request) (any, error) {
	var data updateData
	if err := req.Bind(&data); err != nil {
		return nil, err
	}
	if data.Lat == nil || data.Lon == nil || data.Time == nil || data.Speed == nil {
		return nil, missingArgs()
	}

	in := service.UpdateInput{
		Position: spatial.Point{Lat: *data.Lat, Lon: *data.Lon},
		TimeMs:   *data.Time,
		Speed:    *data.Speed,
		Detail:   int(data.BBox),
		Save:     data.Save == nil || *data.Save,
	}
	res, err := h.traffic.Update(ctx, req.Client, in)
	if err != nil {
		return nil, err
	}

	reply := &UpdateReply{
		Traffic:     make([]TrafficItem, 0, len(res.Traffic)),
		Congestions: make([]CongestionItem, 0, len(res.Congestions)),
		Routing:     res.Routing,
	}
	for _, r := range res.Traffic {
		reply.Traffic = append(reply.Traffic, TrafficItem{
			ID:       r.StripID,
			MaxSpeed: r.MaxSpeed,
			Speed:    r.Speed.Value,
			Quality:  int(r.Speed.Quality),
		})
	}
	for _, c := range res.Congestions {
		reply.Congestions = append(reply.Congestions, congestionItem(c))
	}
	return reply, nil
}

func congestionItem(c models.Congestion) CongestionItem {
	return CongestionItem{ID: c.ID, Lat: c.Lat, Lon: c.Lon, Type: int(c.Type), Time: c.ReportedMs}
}
