package spatial

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the mean Earth radius
const EarthRadiusMeters = 6371000.0

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Distance returns the geodesic distance between two points in meters.
func Distance(a, b Point) float64 {
	return HaversineDistance(a.Lat, a.Lon, b.Lat, b.Lon)
}

// DistanceToLine returns the geodesic distance in meters from p to the closest
// point of the polyline. An empty line is infinitely far away.
func DistanceToLine(p Point, line orb.LineString) float64 {
	if len(line) == 0 {
		return math.Inf(1)
	}

	lls := make([]s2.LatLng, len(line))
	for i, v := range line {
		lls[i] = s2.LatLngFromDegrees(v.Lat(), v.Lon())
	}
	poly := s2.PolylineFromLatLngs(lls)

	target := s2.LatLngFromDegrees(p.Lat, p.Lon)
	projected, _ := poly.Project(s2.PointFromLatLng(target))
	return s2.LatLngFromPoint(projected).Distance(target).Radians() * EarthRadiusMeters
}

// DestinationPoint calculates the destination point given a start point, bearing, and distance
// bearing: degrees (0-360), distance: meters
func DestinationPoint(lat, lon, bearing, distance float64) (float64, float64) {
	p := s2.LatLngFromDegrees(lat, lon)
	bearingRad := bearing * math.Pi / 180
	angularDistance := distance / EarthRadiusMeters

	latRad := p.Lat.Radians()
	lonRad := p.Lng.Radians()

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(angularDistance) +
		math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(bearingRad))

	lon2 := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(lat2))

	return lat2 * 180 / math.Pi, lon2 * 180 / math.Pi
}

// BoundAround returns the square of the given half-size in meters centred on p.
func BoundAround(p Point, halfSize float64) orb.Bound {
	north, _ := DestinationPoint(p.Lat, p.Lon, 0, halfSize)
	_, east := DestinationPoint(p.Lat, p.Lon, 90, halfSize)
	south, _ := DestinationPoint(p.Lat, p.Lon, 180, halfSize)
	_, west := DestinationPoint(p.Lat, p.Lon, 270, halfSize)

	return orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{east, north},
	}
}
