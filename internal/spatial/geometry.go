package spatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Orb converts p to an orb point (x = lon, y = lat).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb point back to a Point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lon: p.Lon()}
}

// LineFromPoints builds a line string from an ordered list of points.
func LineFromPoints(points []Point) orb.LineString {
	line := make(orb.LineString, len(points))
	for i, p := range points {
		line[i] = p.Orb()
	}
	return line
}

// PointsFromLine is the inverse of LineFromPoints.
func PointsFromLine(line orb.LineString) []Point {
	points := make([]Point, len(line))
	for i, p := range line {
		points[i] = FromOrb(p)
	}
	return points
}

// BoundOf returns the bounding box of a set of points
func BoundOf(points []Point) orb.Bound {
	if len(points) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: points[0].Orb(), Max: points[0].Orb()}
	for _, p := range points[1:] {
		b = b.Extend(p.Orb())
	}
	return b
}

// EncodeLine serializes a line string as WKT for storage.
func EncodeLine(line orb.LineString) string {
	return wkt.MarshalString(line)
}

// DecodeLine parses a WKT LINESTRING.
func DecodeLine(s string) (orb.LineString, error) {
	line, err := wkt.UnmarshalLineString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode line: %w", err)
	}
	return line, nil
}

// LinesIntersect reports whether two polylines share a point.
// Coordinates are treated as planar, which holds for strip-sized segments.
func LinesIntersect(a, b orb.LineString) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	if len(a) == 1 || len(b) == 1 {
		for _, p := range a {
			for _, q := range b {
				if p == q {
					return true
				}
			}
		}
		return false
	}

	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

// LineIntersectsBound reports whether any segment of the line crosses or lies in b.
func LineIntersectsBound(line orb.LineString, b orb.Bound) bool {
	if !line.Bound().Intersects(b) {
		return false
	}
	for _, p := range line {
		if b.Contains(p) {
			return true
		}
	}

	corners := orb.LineString{
		b.Min,
		{b.Max[0], b.Min[1]},
		b.Max,
		{b.Min[0], b.Max[1]},
		b.Min,
	}
	return LinesIntersect(line, corners)
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	// collinear or touching cases
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}
