package models

import "github.com/jengzang/traffic-backend-go/internal/spatial"

// CongestionType is the kind of incident a driver reported
type CongestionType int

// CongestionType constants (wire values)
const (
	CongestionJam CongestionType = iota
	CongestionCrash
	CongestionConstruction
	CongestionIce
	CongestionEvent
	CongestionGeneral
)

var congestionNames = map[CongestionType]string{
	CongestionJam:          "jam",
	CongestionCrash:        "crash",
	CongestionConstruction: "construction",
	CongestionIce:          "ice",
	CongestionEvent:        "event",
	CongestionGeneral:      "general",
}

// Valid reports whether t is a known congestion type.
func (t CongestionType) Valid() bool {
	_, ok := congestionNames[t]
	return ok
}

func (t CongestionType) String() string {
	if name, ok := congestionNames[t]; ok {
		return name
	}
	return "unknown"
}

// Congestion is a driver-reported incident snapped to a strip at report time
type Congestion struct {
	ID         int64          `json:"id" db:"id"`
	Type       CongestionType `json:"type" db:"type"`
	Lat        float64        `json:"lat" db:"lat"`
	Lon        float64        `json:"lon" db:"lon"`
	ReportedMs int64          `json:"time" db:"reported_ms"`
	StripID    int64          `json:"-" db:"strip_id"`
}

// Position returns the reported location.
func (c *Congestion) Position() spatial.Point {
	return spatial.Point{Lat: c.Lat, Lon: c.Lon}
}
