package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/models"
)

// ProblemRepository handles recurring problems
type ProblemRepository struct {
	db DBTX
}

// NewProblemRepository creates a new problem repository
func NewProblemRepository(db DBTX) *ProblemRepository {
	return &ProblemRepository{db: db}
}

// InsertIfAbsent stores p unless a problem with the same hour and region exists
func (r *ProblemRepository) InsertIfAbsent(ctx context.Context, p *models.Problem) (bool, error) {
	region, err := json.Marshal(p.Region)
	if err != nil {
		return false, fmt.Errorf("failed to encode region: %w", err)
	}

	var dow any
	if p.DayOfWeek != nil {
		dow = int(*p.DayOfWeek)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO problems (dow, hour, region, description) VALUES (?, ?, ?, ?)
		ON CONFLICT (hour, region) DO NOTHING`,
		dow, p.Hour, string(region), p.Description,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert problem: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if p.ID, err = result.LastInsertId(); err != nil {
		return false, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return true, nil
}

// List returns all problems ordered by hour
func (r *ProblemRepository) List(ctx context.Context) ([]models.Problem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, dow, hour, region, description FROM problems ORDER BY hour, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query problems: %w", err)
	}
	defer rows.Close()

	var out []models.Problem
	for rows.Next() {
		var (
			p      models.Problem
			dow    sql.NullInt64
			region string
		)
		if err := rows.Scan(&p.ID, &dow, &p.Hour, &region, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan problem: %w", err)
		}
		if dow.Valid {
			d := time.Weekday(dow.Int64)
			p.DayOfWeek = &d
		}
		if err := json.Unmarshal([]byte(region), &p.Region); err != nil {
			return nil, fmt.Errorf("problem %d: failed to decode region: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
