package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/traffic-backend-go/internal/models"
)

// MaintenanceRunRepository records maintenance task runs
type MaintenanceRunRepository struct {
	db DBTX
}

// NewMaintenanceRunRepository creates a new run repository
func NewMaintenanceRunRepository(db DBTX) *MaintenanceRunRepository {
	return &MaintenanceRunRepository{db: db}
}

// MarkRunning records the start of a run and returns its ID
func (r *MaintenanceRunRepository) MarkRunning(ctx context.Context, task string, startedMs int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO maintenance_runs (task, status, started_ms) VALUES (?, ?, ?)`,
		task, models.RunStatusRunning, startedMs)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return result.LastInsertId()
}

// MarkCompleted marks a run as completed
func (r *MaintenanceRunRepository) MarkCompleted(ctx context.Context, id int64, affected int, finishedMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE maintenance_runs
		SET status = ?, affected = ?, finished_ms = ?
		WHERE id = ?`,
		models.RunStatusCompleted, affected, finishedMs, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// MarkFailed marks a run as failed with an error message
func (r *MaintenanceRunRepository) MarkFailed(ctx context.Context, id int64, errorMsg string, finishedMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE maintenance_runs
		SET status = ?, error = ?, finished_ms = ?
		WHERE id = ?`,
		models.RunStatusFailed, errorMsg, finishedMs, id)
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	return nil
}

// ListRecent returns the latest runs, newest first. An empty task lists all tasks.
func (r *MaintenanceRunRepository) ListRecent(ctx context.Context, task string, limit int) ([]models.MaintenanceRun, error) {
	query := `SELECT id, task, status, started_ms, finished_ms, affected, error FROM maintenance_runs`
	args := []any{}
	if task != "" {
		query += ` WHERE task = ?`
		args = append(args, task)
	}
	query += ` ORDER BY started_ms DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []models.MaintenanceRun
	for rows.Next() {
		var (
			run      models.MaintenanceRun
			finished sql.NullInt64
			errMsg   sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Task, &run.Status, &run.StartedMs, &finished, &run.Affected, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.FinishedMs = nullableInt64(finished)
		run.Error = errMsg.String
		out = append(out, run)
	}
	return out, rows.Err()
}
