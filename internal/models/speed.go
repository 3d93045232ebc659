package models

import (
	"fmt"
	"sort"
)

// Direction is the travel direction along a strip
type Direction int

// Direction constants
const (
	DirectionUnknown Direction = iota // both flags set
	DirectionToStart
	DirectionToEnd
)

// DirectionFromFlags maps the persisted flag pair back to a Direction.
// Missing or contradictory flags are Unknown.
func DirectionFromFlags(toStart, toEnd *bool) Direction {
	s := toStart != nil && *toStart
	e := toEnd != nil && *toEnd
	switch {
	case s && !e:
		return DirectionToStart
	case e && !s:
		return DirectionToEnd
	default:
		return DirectionUnknown
	}
}

// Flags returns the persisted (toStart, toEnd) pair.
func (d Direction) Flags() (toStart, toEnd bool) {
	switch d {
	case DirectionToStart:
		return true, false
	case DirectionToEnd:
		return false, true
	default:
		return true, true
	}
}

// Column returns the speeds.direction value. Only ToStart and ToEnd are stored.
func (d Direction) Column() (string, error) {
	switch d {
	case DirectionToStart:
		return "start", nil
	case DirectionToEnd:
		return "end", nil
	default:
		return "", fmt.Errorf("direction %d has no speed column", d)
	}
}

// DirectionFromColumn parses a speeds.direction value.
func DirectionFromColumn(s string) (Direction, error) {
	switch s {
	case "start":
		return DirectionToStart, nil
	case "end":
		return DirectionToEnd, nil
	default:
		return DirectionUnknown, fmt.Errorf("unknown speed direction %q", s)
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionToStart:
		return "to_start"
	case DirectionToEnd:
		return "to_end"
	default:
		return "unknown"
	}
}

// Quality is the confidence tier of a reading; lower is better.
type Quality int

// Quality constants
const (
	QualityUpToDate    Quality = 0
	QualitySameWeekday Quality = 1
	QualityAllHistory  Quality = 2

	// QualityLimit marks a reading synthesized from the road's static limit.
	QualityLimit Quality = -1
)

// Speed is one directional reading of a strip
type Speed struct {
	ID        int64     `json:"id,omitempty" db:"id"`
	StripID   int64     `json:"strip_id" db:"strip_id"`
	Direction Direction `json:"direction" db:"direction"`
	Quality   Quality   `json:"quality" db:"quality"`
	Value     int       `json:"speed" db:"speed"`

	NoData bool `json:"-"`
}

// NoDataSpeed is the sentinel for a strip with neither readings nor a limit.
func NoDataSpeed(stripID int64) Speed {
	return Speed{StripID: stripID, Quality: QualityLimit, Value: -1, NoData: true}
}

// SpeedSet holds the readings of one direction, best tier first
type SpeedSet []Speed

// NewSpeedSet copies and sorts readings by tier.
func NewSpeedSet(speeds ...Speed) SpeedSet {
	set := make(SpeedSet, len(speeds))
	copy(set, speeds)
	set.Sort()
	return set
}

// Sort orders the set by tier only.
func (s SpeedSet) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Quality < s[j].Quality
	})
}

// Best returns the lowest-tier reading.
func (s SpeedSet) Best() (Speed, bool) {
	if len(s) == 0 {
		return Speed{}, false
	}
	best := s[0]
	for _, sp := range s[1:] {
		if sp.Quality < best.Quality {
			best = sp
		}
	}
	return best, true
}
