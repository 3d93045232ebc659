package service

import (
	"context"

	"github.com/jengzang/traffic-backend-go/internal/analysis"
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
)

// Detail levels of an update reply
const (
	DetailStrip    = 1 // the current strip only
	DetailTouching = 2 // plus strips touching it
)

// surroundingHalfSize is half the side of the square searched for any other
// detail level, in meters
const surroundingHalfSize = 1000.0

// UpdateInput is one telemetry sample with its reply options
type UpdateInput struct {
	Position spatial.Point
	TimeMs   int64
	Speed    float64
	Detail   int
	Save     bool
}

// Reading is the speed reported for one strip
type Reading struct {
	StripID  int64
	MaxSpeed int
	Speed    models.Speed
}

// UpdateResult is the traffic around a sample
type UpdateResult struct {
	Traffic     []Reading
	Congestions []models.Congestion
	Routing     bool // the client's route changed since it was last fetched
}

// TrafficService ingests telemetry and reports surrounding traffic
type TrafficService struct {
	store      *repository.Store
	snapRadius float64
	now        Clock
}

// NewTrafficService creates a new traffic service
func NewTrafficService(store *repository.Store, snapRadius float64, now Clock) *TrafficService {
	return &TrafficService{store: store, snapRadius: snapRadius, now: now}
}

// Update snaps the sample, collects the readings and congestions of the
// strips around it and stores the sample when asked to. An unsnapped sample
// yields empty traffic and is stored without a strip.
func (s *TrafficService) Update(ctx context.Context, client *models.Client, in UpdateInput) (*UpdateResult, error) {
	result := &UpdateResult{Traffic: []Reading{}, Congestions: []models.Congestion{}}
	sample := &models.UserData{
		TimeMs: in.TimeMs,
		Lat:    in.Position.Lat,
		Lon:    in.Position.Lon,
		Speed:  in.Speed,
		Token:  client.Token,
	}

	strip, err := s.store.Roads.Nearest(ctx, in.Position, s.snapRadius)
	if err != nil {
		return nil, protocol.Store(err)
	}

	if strip != nil {
		sample.StripID = &strip.ID

		prev, err := s.store.UserData.Previous(ctx, client.Token, in.TimeMs)
		if err != nil {
			return nil, protocol.Store(err)
		}
		result.add(strip, analysis.InferDirection(prev, in.Position, strip))

		neighbours, err := s.neighbours(ctx, strip, in)
		if err != nil {
			return nil, protocol.Store(err)
		}
		for _, n := range neighbours {
			if n.ID != strip.ID {
				result.add(n, analysis.NeighbourDirection(strip, n))
			}
		}
	}

	route, err := s.store.Routes.GetByClient(ctx, client.ID)
	if err != nil {
		return nil, protocol.Store(err)
	}
	result.Routing = route != nil && route.Updated

	if in.Save {
		if err := s.store.UserData.Insert(ctx, sample); err != nil {
			return nil, protocol.Store(err)
		}
	}
	return result, nil
}

func (s *TrafficService) neighbours(ctx context.Context, strip *models.RoadStrip, in UpdateInput) ([]*models.RoadStrip, error) {
	switch in.Detail {
	case DetailStrip:
		return nil, nil
	case DetailTouching:
		return s.store.Roads.Touching(ctx, strip)
	default:
		return s.store.Roads.Intersecting(ctx, spatial.BoundAround(in.Position, surroundingHalfSize))
	}
}

func (r *UpdateResult) add(strip *models.RoadStrip, dir models.Direction) {
	r.Traffic = append(r.Traffic, Reading{
		StripID:  strip.ID,
		MaxSpeed: strip.MaxSpeed(),
		Speed:    strip.BestSpeed(dir),
	})
	r.Congestions = append(r.Congestions, strip.Congestions...)
}
