package models

import (
	"github.com/jengzang/traffic-backend-go/internal/spatial"
	"github.com/paulmach/orb"
)

// Road represents a named road owning a set of strips
type Road struct {
	ID       int64   `json:"id" db:"id"`
	Name     *string `json:"name,omitempty" db:"name"`
	Class    *string `json:"road_class,omitempty" db:"road_class"`
	MaxSpeed *int    `json:"maxspeed,omitempty" db:"maxspeed"`

	// nil = unset, true = inferred, false = fixed by an operator
	Calculated *bool `json:"calculated,omitempty" db:"calculated"`
}

// LimitFixed reports whether an operator pinned the speed limit.
func (r *Road) LimitFixed() bool {
	return r.Calculated != nil && !*r.Calculated
}

// LimitInferable reports whether inference may write the speed limit.
func (r *Road) LimitInferable() bool {
	return !r.LimitFixed()
}

// RoadStrip is a directed segment of a road between two intersections
type RoadStrip struct {
	ID     int64          `json:"id" db:"id"`
	RoadID int64          `json:"road_id" db:"road_id"`
	Way    orb.LineString `json:"-" db:"way_wkt"`

	Road        *Road        `json:"-"`
	ToStart     SpeedSet     `json:"-"`
	ToEnd       SpeedSet     `json:"-"`
	Congestions []Congestion `json:"-"`
}

// Start returns the first vertex of the strip.
func (s *RoadStrip) Start() spatial.Point {
	if len(s.Way) == 0 {
		return spatial.Point{}
	}
	return spatial.FromOrb(s.Way[0])
}

// End returns the last vertex of the strip.
func (s *RoadStrip) End() spatial.Point {
	if len(s.Way) == 0 {
		return spatial.Point{}
	}
	return spatial.FromOrb(s.Way[len(s.Way)-1])
}

// MaxSpeed returns the owning road's limit, 0 when unknown.
func (s *RoadStrip) MaxSpeed() int {
	if s.Road == nil || s.Road.MaxSpeed == nil {
		return 0
	}
	return *s.Road.MaxSpeed
}

// BestSpeed returns the most trustworthy reading for the travel direction.
//
// For an unknown direction both sets are considered and ToEnd wins a tie.
// Without readings the road limit is returned with QualityLimit, and without
// a limit the NoData sentinel.
func (s *RoadStrip) BestSpeed(dir Direction) Speed {
	var (
		best Speed
		ok   bool
	)

	switch dir {
	case DirectionToStart:
		best, ok = s.ToStart.Best()
	case DirectionToEnd:
		best, ok = s.ToEnd.Best()
	default:
		end, endOK := s.ToEnd.Best()
		start, startOK := s.ToStart.Best()
		switch {
		case endOK && (!startOK || end.Quality <= start.Quality):
			best, ok = end, true
		case startOK:
			best, ok = start, true
		}
	}
	if ok {
		return best
	}

	if s.Road != nil && s.Road.MaxSpeed != nil {
		return Speed{
			StripID:   s.ID,
			Direction: dir,
			Quality:   QualityLimit,
			Value:     *s.Road.MaxSpeed,
		}
	}
	return NoDataSpeed(s.ID)
}
