package models

import "github.com/paulmach/orb"

// Route is the jam-avoiding route owned by one client
type Route struct {
	ID            int64          `json:"id" db:"id"`
	ClientID      *int64         `json:"-" db:"client_id"` // nil once the owner is gone
	Way           orb.LineString `json:"-" db:"polyline_wkt"`
	StartedMs     int64          `json:"started" db:"started_ms"`
	Updated       bool           `json:"updated" db:"updated"`
	ProviderQuery string         `json:"-" db:"provider_query"`
}

// SameWay reports whether two polylines have identical vertices.
func SameWay(a, b orb.LineString) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
