package analysis

import (
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
)

// touchTolerance is how close (meters) a strip endpoint must be to another
// strip to count as connected.
const touchTolerance = 5.0

// InferDirection derives the travel direction of cur on strip from the
// previous sample of the same session.
//
//   - no previous sample: unknown
//   - previous sample on the same strip: toward the end when cur is farther
//     from the start than prev was, toward the start otherwise
//   - previous sample elsewhere: the strip is entered from the endpoint the
//     previous position was nearer to
func InferDirection(prev *models.UserData, cur spatial.Point, strip *models.RoadStrip) models.Direction {
	if prev == nil || strip == nil || len(strip.Way) == 0 {
		return models.DirectionUnknown
	}

	start, end := strip.Start(), strip.End()
	if prev.StripID != nil && *prev.StripID == strip.ID {
		if spatial.Distance(cur, start) > spatial.Distance(prev.Position(), start) {
			return models.DirectionToEnd
		}
		return models.DirectionToStart
	}

	if spatial.Distance(prev.Position(), start) > spatial.Distance(prev.Position(), end) {
		return models.DirectionToStart
	}
	return models.DirectionToEnd
}

// NeighbourDirection guesses the direction to report for a strip touching
// current. A neighbour starting on current continues toward its end, one
// ending on current toward its start.
func NeighbourDirection(current, neighbour *models.RoadStrip) models.Direction {
	if len(current.Way) == 0 || len(neighbour.Way) == 0 {
		return models.DirectionUnknown
	}
	if spatial.DistanceToLine(neighbour.Start(), current.Way) <= touchTolerance {
		return models.DirectionToEnd
	}
	if spatial.DistanceToLine(neighbour.End(), current.Way) <= touchTolerance {
		return models.DirectionToStart
	}
	return models.DirectionUnknown
}
