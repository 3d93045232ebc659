package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"

	"github.com/jengzang/traffic-backend-go/internal/analysis"
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
	"github.com/paulmach/orb"
)

// RoadRepository handles roads and their strips
type RoadRepository struct {
	db DBTX
}

// NewRoadRepository creates a new road repository
func NewRoadRepository(db DBTX) *RoadRepository {
	return &RoadRepository{db: db}
}

// CreateRoad inserts a road
func (r *RoadRepository) CreateRoad(ctx context.Context, road *models.Road) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO roads (name, road_class, maxspeed, calculated) VALUES (?, ?, ?, ?)`,
		road.Name, road.Class, road.MaxSpeed, road.Calculated,
	)
	if err != nil {
		return fmt.Errorf("failed to create road: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	road.ID = id
	return nil
}

// GetRoad retrieves a road by ID, nil if it does not exist
func (r *RoadRepository) GetRoad(ctx context.Context, id int64) (*models.Road, error) {
	roads, err := r.roadsByID(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return roads[id], nil
}

// SetInferredMaxSpeed writes an inferred limit unless an operator fixed it.
// It reports whether the road was updated.
func (r *RoadRepository) SetInferredMaxSpeed(ctx context.Context, roadID int64, speed int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE roads SET maxspeed = ?, calculated = 1
		 WHERE id = ? AND (calculated IS NULL OR calculated = 1)`,
		speed, roadID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set inferred maxspeed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// FixMaxSpeed pins an operator-supplied limit
func (r *RoadRepository) FixMaxSpeed(ctx context.Context, roadID int64, speed int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE roads SET maxspeed = ?, calculated = 0 WHERE id = ?`, speed, roadID)
	if err != nil {
		return false, fmt.Errorf("failed to fix maxspeed: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ReleaseMaxSpeed hands the limit back to inference
func (r *RoadRepository) ReleaseMaxSpeed(ctx context.Context, roadID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE roads SET calculated = NULL WHERE id = ?`, roadID)
	if err != nil {
		return false, fmt.Errorf("failed to release maxspeed: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// CreateStrip inserts a strip with its bounding box
func (r *RoadRepository) CreateStrip(ctx context.Context, s *models.RoadStrip) error {
	if len(s.Way) < 2 {
		return fmt.Errorf("strip needs at least two vertices")
	}
	b := s.Way.Bound()
	start, end := s.Start(), s.End()

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO roadstrips (
			road_id, way_wkt, start_lat, start_lon, end_lat, end_lon,
			min_lat, min_lon, max_lat, max_lon
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RoadID, spatial.EncodeLine(s.Way),
		start.Lat, start.Lon, end.Lat, end.Lon,
		b.Min.Lat(), b.Min.Lon(), b.Max.Lat(), b.Max.Lon(),
	)
	if err != nil {
		return fmt.Errorf("failed to create road strip: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id
	return nil
}

// GetStrip loads a strip with its road, readings and congestions
func (r *RoadRepository) GetStrip(ctx context.Context, id int64) (*models.RoadStrip, error) {
	strips, err := r.StripsByID(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return strips[id], nil
}

// StripsByID loads several strips with details, keyed by ID
func (r *RoadRepository) StripsByID(ctx context.Context, ids []int64) (map[int64]*models.RoadStrip, error) {
	out := make(map[int64]*models.RoadStrip, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	strips, err := r.queryStrips(ctx,
		`SELECT id, road_id, way_wkt FROM roadstrips WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, strips); err != nil {
		return nil, err
	}
	for _, s := range strips {
		out[s.ID] = s
	}
	return out, nil
}

// Nearest returns the strip closest to p within radius meters, nil if none
func (r *RoadRepository) Nearest(ctx context.Context, p spatial.Point, radius float64) (*models.RoadStrip, error) {
	candidates, err := r.stripsInBound(ctx, spatial.BoundAround(p, radius))
	if err != nil {
		return nil, err
	}

	var (
		best     *models.RoadStrip
		bestDist = math.Inf(1)
	)
	for _, s := range candidates {
		d := spatial.DistanceToLine(p, s.Way)
		if d <= radius && (d < bestDist || (d == bestDist && s.ID < best.ID)) {
			best, bestDist = s, d
		}
	}
	if best == nil {
		return nil, nil
	}

	if err := r.loadDetails(ctx, []*models.RoadStrip{best}); err != nil {
		return nil, err
	}
	return best, nil
}

// CountWithin counts strips passing within radius meters of p
func (r *RoadRepository) CountWithin(ctx context.Context, p spatial.Point, radius float64) (int, error) {
	candidates, err := r.stripsInBound(ctx, spatial.BoundAround(p, radius))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range candidates {
		if spatial.DistanceToLine(p, s.Way) <= radius {
			n++
		}
	}
	return n, nil
}

// Intersecting returns strips crossing or lying inside b, ordered by ID
func (r *RoadRepository) Intersecting(ctx context.Context, b orb.Bound) ([]*models.RoadStrip, error) {
	candidates, err := r.stripsInBound(ctx, b)
	if err != nil {
		return nil, err
	}

	var strips []*models.RoadStrip
	for _, s := range candidates {
		if spatial.LineIntersectsBound(s.Way, b) {
			strips = append(strips, s)
		}
	}
	if err := r.loadDetails(ctx, strips); err != nil {
		return nil, err
	}
	return strips, nil
}

// Touching returns the strips sharing a point with s, excluding s itself
func (r *RoadRepository) Touching(ctx context.Context, s *models.RoadStrip) ([]*models.RoadStrip, error) {
	candidates, err := r.stripsInBound(ctx, s.Way.Bound())
	if err != nil {
		return nil, err
	}

	var strips []*models.RoadStrip
	for _, c := range candidates {
		if c.ID != s.ID && spatial.LinesIntersect(s.Way, c.Way) {
			strips = append(strips, c)
		}
	}
	if err := r.loadDetails(ctx, strips); err != nil {
		return nil, err
	}
	return strips, nil
}

// Jammed returns the strips in b where some reading is below analysis.JamFactor x limit
func (r *RoadRepository) Jammed(ctx context.Context, b orb.Bound) ([]*models.RoadStrip, error) {
	strips, err := r.Intersecting(ctx, b)
	if err != nil {
		return nil, err
	}

	var jammed []*models.RoadStrip
	for _, s := range strips {
		if analysis.IsJammed(s) {
			jammed = append(jammed, s)
		}
	}
	return jammed, nil
}

func (r *RoadRepository) stripsInBound(ctx context.Context, b orb.Bound) ([]*models.RoadStrip, error) {
	return r.queryStrips(ctx, `
		SELECT id, road_id, way_wkt FROM roadstrips
		WHERE max_lat >= ? AND min_lat <= ? AND max_lon >= ? AND min_lon <= ?
		ORDER BY id`,
		b.Min.Lat(), b.Max.Lat(), b.Min.Lon(), b.Max.Lon(),
	)
}

func (r *RoadRepository) queryStrips(ctx context.Context, query string, args ...any) ([]*models.RoadStrip, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query road strips: %w", err)
	}
	defer rows.Close()

	var strips []*models.RoadStrip
	for rows.Next() {
		var (
			s   models.RoadStrip
			wkt string
		)
		if err := rows.Scan(&s.ID, &s.RoadID, &wkt); err != nil {
			return nil, fmt.Errorf("failed to scan road strip: %w", err)
		}
		if s.Way, err = spatial.DecodeLine(wkt); err != nil {
			return nil, fmt.Errorf("road strip %d: %w", s.ID, err)
		}
		strips = append(strips, &s)
	}
	return strips, rows.Err()
}

// loadDetails attaches roads, readings and congestions to the strips
func (r *RoadRepository) loadDetails(ctx context.Context, strips []*models.RoadStrip) error {
	if len(strips) == 0 {
		return nil
	}

	stripIDs := make([]int64, len(strips))
	roadIDSet := make(map[int64]struct{})
	byID := make(map[int64]*models.RoadStrip, len(strips))
	for i, s := range strips {
		stripIDs[i] = s.ID
		roadIDSet[s.RoadID] = struct{}{}
		byID[s.ID] = s
		s.ToStart, s.ToEnd, s.Congestions = nil, nil, nil
	}
	roadIDs := make([]int64, 0, len(roadIDSet))
	for id := range roadIDSet {
		roadIDs = append(roadIDs, id)
	}
	sort.Slice(roadIDs, func(i, j int) bool { return roadIDs[i] < roadIDs[j] })

	roads, err := r.roadsByID(ctx, roadIDs)
	if err != nil {
		return err
	}
	for _, s := range strips {
		s.Road = roads[s.RoadID]
	}

	speeds, err := NewSpeedRepository(r.db).ForStrips(ctx, stripIDs)
	if err != nil {
		return err
	}
	for _, sp := range speeds {
		s := byID[sp.StripID]
		switch sp.Direction {
		case models.DirectionToStart:
			s.ToStart = append(s.ToStart, sp)
		case models.DirectionToEnd:
			s.ToEnd = append(s.ToEnd, sp)
		}
	}
	for _, s := range strips {
		s.ToStart.Sort()
		s.ToEnd.Sort()
	}

	congestions, err := NewCongestionRepository(r.db).ForStrips(ctx, stripIDs)
	if err != nil {
		return err
	}
	for _, c := range congestions {
		s := byID[c.StripID]
		s.Congestions = append(s.Congestions, c)
	}
	return nil
}

func (r *RoadRepository) roadsByID(ctx context.Context, ids []int64) (map[int64]*models.Road, error) {
	out := make(map[int64]*models.Road, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, road_class, maxspeed, calculated FROM roads WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			road       models.Road
			name, cls  sql.NullString
			maxspeed   sql.NullInt64
			calculated sql.NullBool
		)
		if err := rows.Scan(&road.ID, &name, &cls, &maxspeed, &calculated); err != nil {
			return nil, fmt.Errorf("failed to scan road: %w", err)
		}
		road.Name = nullableString(name)
		road.Class = nullableString(cls)
		road.MaxSpeed = nullableInt(maxspeed)
		road.Calculated = nullableBool(calculated)
		out[road.ID] = &road
	}
	return out, rows.Err()
}
