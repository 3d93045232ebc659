package repository

import (
	"context"
	"fmt"

	"github.com/jengzang/traffic-backend-go/internal/models"
)

// SpeedRepository handles the tiered readings of strips
type SpeedRepository struct {
	db DBTX
}

// NewSpeedRepository creates a new speed repository
func NewSpeedRepository(db DBTX) *SpeedRepository {
	return &SpeedRepository{db: db}
}

// Upsert stores a reading, replacing the value of the same (strip, direction, tier)
func (r *SpeedRepository) Upsert(ctx context.Context, sp models.Speed) error {
	dir, err := sp.Direction.Column()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO speeds (strip_id, direction, quality, speed) VALUES (?, ?, ?, ?)
		ON CONFLICT (strip_id, direction, quality) DO UPDATE SET speed = excluded.speed`,
		sp.StripID, dir, int(sp.Quality), sp.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert speed: %w", err)
	}
	return nil
}

// DeleteTier removes every reading of one tier
func (r *SpeedRepository) DeleteTier(ctx context.Context, q models.Quality) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM speeds WHERE quality = ?`, int(q))
	if err != nil {
		return 0, fmt.Errorf("failed to delete speeds: %w", err)
	}
	return result.RowsAffected()
}

// ForStrips returns all readings of the given strips
func (r *SpeedRepository) ForStrips(ctx context.Context, stripIDs []int64) ([]models.Speed, error) {
	if len(stripIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, strip_id, direction, quality, speed FROM speeds
		 WHERE strip_id IN (`+placeholders(len(stripIDs))+`) ORDER BY strip_id, quality`,
		int64Args(stripIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query speeds: %w", err)
	}
	defer rows.Close()

	var speeds []models.Speed
	for rows.Next() {
		var (
			sp      models.Speed
			dir     string
			quality int
		)
		if err := rows.Scan(&sp.ID, &sp.StripID, &dir, &quality, &sp.Value); err != nil {
			return nil, fmt.Errorf("failed to scan speed: %w", err)
		}
		if sp.Direction, err = models.DirectionFromColumn(dir); err != nil {
			return nil, err
		}
		sp.Quality = models.Quality(quality)
		speeds = append(speeds, sp)
	}
	return speeds, rows.Err()
}
