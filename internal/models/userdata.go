package models

import "github.com/jengzang/traffic-backend-go/internal/spatial"

// UserData is one telemetry sample reported by a device
type UserData struct {
	ID      int64   `json:"id" db:"id"`
	TimeMs  int64   `json:"time" db:"time_ms"`
	Lat     float64 `json:"lat" db:"lat"`
	Lon     float64 `json:"lon" db:"lon"`
	Speed   float64 `json:"speed" db:"speed"` // km/h
	Token   string  `json:"-" db:"token"`
	StripID *int64  `json:"strip_id,omitempty" db:"strip_id"` // nil when unsnapped

	// Derived by maintenance, nil until computed
	ToStart *bool `json:"to_start,omitempty" db:"to_start"`
	ToEnd   *bool `json:"to_end,omitempty" db:"to_end"`
	Factor  *int  `json:"factor,omitempty" db:"factor"`
}

// Position returns the sample location.
func (u *UserData) Position() spatial.Point {
	return spatial.Point{Lat: u.Lat, Lon: u.Lon}
}

// Direction returns the inferred travel direction.
func (u *UserData) Direction() Direction {
	return DirectionFromFlags(u.ToStart, u.ToEnd)
}

// Directed reports whether direction flags have been set.
func (u *UserData) Directed() bool {
	return u.ToStart != nil && u.ToEnd != nil
}

// Price factors
const (
	FactorDense    = 1
	FactorIsolated = 10
)
