package repository

import (
	"context"
	"fmt"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/paulmach/orb"
)

// CongestionRepository handles driver-reported incidents
type CongestionRepository struct {
	db DBTX
}

// NewCongestionRepository creates a new congestion repository
func NewCongestionRepository(db DBTX) *CongestionRepository {
	return &CongestionRepository{db: db}
}

// Exists reports whether the strip already carries a congestion of that type
func (r *CongestionRepository) Exists(ctx context.Context, t models.CongestionType, stripID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM congestions WHERE type = ? AND strip_id = ?`, int(t), stripID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check congestion: %w", err)
	}
	return n > 0, nil
}

// InsertIfAbsent stores c unless its (type, strip) pair is already present.
// It reports whether a row was written.
func (r *CongestionRepository) InsertIfAbsent(ctx context.Context, c *models.Congestion) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO congestions (type, lat, lon, reported_ms, strip_id) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (type, strip_id) DO NOTHING`,
		int(c.Type), c.Lat, c.Lon, c.ReportedMs, c.StripID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert congestion: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if c.ID, err = result.LastInsertId(); err != nil {
		return false, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return true, nil
}

// Delete removes a congestion by ID
func (r *CongestionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM congestions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete congestion: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// DeleteOlderThan removes congestions reported before cutoffMs
func (r *CongestionRepository) DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM congestions WHERE reported_ms < ?`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old congestions: %w", err)
	}
	return result.RowsAffected()
}

// InBound returns the congestions positioned inside b
func (r *CongestionRepository) InBound(ctx context.Context, b orb.Bound) ([]models.Congestion, error) {
	return r.query(ctx, `
		SELECT id, type, lat, lon, reported_ms, strip_id FROM congestions
		WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		ORDER BY id`,
		b.Min.Lat(), b.Max.Lat(), b.Min.Lon(), b.Max.Lon(),
	)
}

// ForStrips returns the congestions attached to the given strips
func (r *CongestionRepository) ForStrips(ctx context.Context, stripIDs []int64) ([]models.Congestion, error) {
	if len(stripIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx,
		`SELECT id, type, lat, lon, reported_ms, strip_id FROM congestions
		 WHERE strip_id IN (`+placeholders(len(stripIDs))+`) ORDER BY id`,
		int64Args(stripIDs)...)
}

func (r *CongestionRepository) query(ctx context.Context, query string, args ...any) ([]models.Congestion, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query congestions: %w", err)
	}
	defer rows.Close()

	var out []models.Congestion
	for rows.Next() {
		var (
			c models.Congestion
			t int
		)
		if err := rows.Scan(&c.ID, &t, &c.Lat, &c.Lon, &c.ReportedMs, &c.StripID); err != nil {
			return nil, fmt.Errorf("failed to scan congestion: %w", err)
		}
		c.Type = models.CongestionType(t)
		out = append(out, c)
	}
	return out, rows.Err()
}
