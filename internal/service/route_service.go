package service

import (
	"context"
	"log/slog"

	"github.com/jengzang/traffic-backend-go/internal/events"
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/router"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
	"github.com/paulmach/orb"
)

// RouteService computes jam-avoiding routes through the external router
type RouteService struct {
	store     *repository.Store
	router    *router.Client
	publisher events.Publisher
	now       Clock
}

// NewRouteService creates a new route service
func NewRouteService(store *repository.Store, rt *router.Client, publisher events.Publisher, now Clock) *RouteService {
	return &RouteService{store: store, router: rt, publisher: publisher, now: now}
}

// Calculate routes client through waypoints around the jams and congestions
// between the first and last waypoint, replacing any previous route.
func (s *RouteService) Calculate(ctx context.Context, client *models.Client, waypoints []spatial.Point) (*models.Route, error) {
	query, err := s.router.BuildQuery(waypoints)
	if err != nil {
		return nil, err
	}

	area := spatial.BoundOf([]spatial.Point{waypoints[0], waypoints[len(waypoints)-1]})
	blocked, err := s.Blocked(ctx, area)
	if err != nil {
		return nil, protocol.Store(err)
	}

	way, err := s.router.Route(ctx, query, blocked)
	if err != nil {
		return nil, err
	}

	route := &models.Route{
		ClientID:      &client.ID,
		Way:           way,
		StartedMs:     s.now().UnixMilli(),
		Updated:       true,
		ProviderQuery: query,
	}
	if err := s.store.Routes.Save(ctx, route); err != nil {
		return nil, protocol.Store(err)
	}

	slog.Info("route calculated", "route_id", route.ID, "waypoints", len(waypoints), "blocked", len(blocked))
	s.publisher.RouteChanged(ctx, route.ID, events.RouteCalculated)
	return route, nil
}

// Reroute queries the router again with the stored query and the current
// blocked list. The route is replaced and flagged only when the way changed
// and the stored row still matches route; a route recomputed by its client
// during the router call is left alone.
func (s *RouteService) Reroute(ctx context.Context, route *models.Route) (bool, error) {
	if len(route.Way) == 0 {
		return false, nil
	}

	area := spatial.BoundOf([]spatial.Point{
		spatial.FromOrb(route.Way[0]),
		spatial.FromOrb(route.Way[len(route.Way)-1]),
	})
	blocked, err := s.Blocked(ctx, area)
	if err != nil {
		return false, err
	}

	way, err := s.router.Route(ctx, route.ProviderQuery, blocked)
	if err != nil {
		return false, err
	}
	if models.SameWay(route.Way, way) {
		return false, nil
	}

	replaced, err := s.store.Routes.Replace(ctx, route, way)
	if err != nil {
		return false, err
	}
	if !replaced {
		slog.Debug("route changed during reroute, skipping", "route_id", route.ID)
		return false, nil
	}
	route.Way, route.Updated = way, true
	s.publisher.RouteChanged(ctx, route.ID, events.RouteRerouted)
	return true, nil
}

// Blocked returns every vertex of the jammed strips crossing area followed
// by the position of every congestion inside it.
func (s *RouteService) Blocked(ctx context.Context, area orb.Bound) ([]spatial.Point, error) {
	jammed, err := s.store.Roads.Jammed(ctx, area)
	if err != nil {
		return nil, err
	}
	congestions, err := s.store.Congestions.InBound(ctx, area)
	if err != nil {
		return nil, err
	}

	var blocked []spatial.Point
	for _, strip := range jammed {
		blocked = append(blocked, spatial.PointsFromLine(strip.Way)...)
	}
	for _, c := range congestions {
		blocked = append(blocked, c.Position())
	}
	return blocked, nil
}

// Fetch returns the client's route and clears its updated flag.
func (s *RouteService) Fetch(ctx context.Context, client *models.Client) ([]spatial.Point, error) {
	route, err := s.store.Routes.GetByClient(ctx, client.ID)
	if err != nil {
		return nil, protocol.Store(err)
	}
	if route == nil {
		return nil, protocol.Validation(protocol.MsgNothingToRoute)
	}

	if route.Updated {
		if err := s.store.Routes.MarkDelivered(ctx, route.ID, route.Way); err != nil {
			return nil, protocol.Store(err)
		}
	}
	return spatial.PointsFromLine(route.Way), nil
}

// Delete drops the client's route, if any.
func (s *RouteService) Delete(ctx context.Context, client *models.Client) error {
	if _, err := s.store.Routes.DeleteByClient(ctx, client.ID); err != nil {
		return protocol.Store(err)
	}
	return nil
}
