package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineDistance(t *testing.T) {
	// one degree of latitude is ~111.2 km
	d := HaversineDistance(48.0, 11.0, 49.0, 11.0)
	assert.InDelta(t, 111195, d, 50)
	assert.Zero(t, HaversineDistance(48.1, 11.5, 48.1, 11.5))
}

func TestDistanceToLine(t *testing.T) {
	line := orb.LineString{{11.0, 48.0}, {11.01, 48.0}}

	tests := []struct {
		name string
		p    Point
		want float64
	}{
		{"on the line", Point{Lat: 48.0, Lon: 11.005}, 0},
		{"beside the middle", Point{Lat: 48.0005, Lon: 11.005}, 55.6},
		{"past the end", Point{Lat: 48.0, Lon: 11.011}, 74.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DistanceToLine(tt.p, line), 1.0)
		})
	}
}

func TestDistanceToEmptyLineIsInfinite(t *testing.T) {
	assert.Greater(t, DistanceToLine(Point{Lat: 1, Lon: 1}, nil), 1e12)
}

func TestBoundAround(t *testing.T) {
	center := Point{Lat: 48.0, Lon: 11.0}
	b := BoundAround(center, 1000)

	assert.True(t, b.Contains(center.Orb()))
	assert.InDelta(t, 1000, HaversineDistance(48.0, 11.0, b.Max.Lat(), 11.0), 1)
	assert.InDelta(t, 1000, HaversineDistance(48.0, 11.0, 48.0, b.Min.Lon()), 1)
}

func TestEncodeDecodeLine(t *testing.T) {
	line := LineFromPoints([]Point{{Lat: 48.1, Lon: 11.5}, {Lat: 48.2, Lon: 11.6}})

	decoded, err := DecodeLine(EncodeLine(line))
	require.NoError(t, err)
	assert.Equal(t, line, decoded)
	assert.Equal(t, []Point{{Lat: 48.1, Lon: 11.5}, {Lat: 48.2, Lon: 11.6}}, PointsFromLine(decoded))

	_, err = DecodeLine("POINT (1 2)")
	assert.Error(t, err)
}

func TestLinesIntersect(t *testing.T) {
	base := orb.LineString{{0, 0}, {1, 0}}

	tests := []struct {
		name  string
		other orb.LineString
		want  bool
	}{
		{"crossing", orb.LineString{{0.5, -1}, {0.5, 1}}, true},
		{"sharing an endpoint", orb.LineString{{1, 0}, {2, 1}}, true},
		{"parallel", orb.LineString{{0, 1}, {1, 1}}, false},
		{"disjoint", orb.LineString{{3, 3}, {4, 4}}, false},
		{"collinear overlap", orb.LineString{{0.5, 0}, {2, 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LinesIntersect(base, tt.other))
		})
	}
}

func TestLineIntersectsBound(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

	assert.True(t, LineIntersectsBound(orb.LineString{{0.5, 0.5}, {3, 3}}, b))
	assert.True(t, LineIntersectsBound(orb.LineString{{-1, 0.5}, {2, 0.5}}, b))
	assert.False(t, LineIntersectsBound(orb.LineString{{2, 2}, {3, 3}}, b))
}

func TestBoundOf(t *testing.T) {
	b := BoundOf([]Point{{Lat: 2, Lon: 1}, {Lat: -1, Lon: 5}})
	assert.Equal(t, orb.Point{1, -1}, b.Min)
	assert.Equal(t, orb.Point{5, 2}, b.Max)
}
