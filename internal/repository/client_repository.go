package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jengzang/traffic-backend-go/internal/models"
)

// ClientRepository handles database operations for device sessions
type ClientRepository struct {
	db DBTX
}

// NewClientRepository creates a new client repository
func NewClientRepository(db DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create inserts a new client
func (r *ClientRepository) Create(ctx context.Context, c *models.Client) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (token, device, lease_ms, acknowledged) VALUES (?, ?, ?, ?)`,
		c.Token, c.Device, c.LeaseMs, c.Acknowledged,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// GetByToken returns the client holding token, nil if none does
func (r *ClientRepository) GetByToken(ctx context.Context, token string) (*models.Client, error) {
	var c models.Client
	err := r.db.QueryRowContext(ctx,
		`SELECT id, token, device, lease_ms, acknowledged FROM clients WHERE token = ?`, token,
	).Scan(&c.ID, &c.Token, &c.Device, &c.LeaseMs, &c.Acknowledged)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &c, nil
}

// TokenInUse reports whether any client holds token
func (r *ClientRepository) TokenInUse(ctx context.Context, token string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE token = ?`, token).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

// Acknowledge marks the handshake as completed
func (r *ClientRepository) Acknowledge(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE clients SET acknowledged = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to acknowledge client: %w", err)
	}
	return nil
}

// Rotate replaces the token and lease of a client
func (r *ClientRepository) Rotate(ctx context.Context, id int64, token string, leaseMs int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE clients SET token = ?, lease_ms = ? WHERE id = ?`, token, leaseMs, id)
	if err != nil {
		return fmt.Errorf("failed to rotate client token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("client not found: %d", id)
	}
	return nil
}

// DeleteExpired removes clients whose lease ended before nowMs
func (r *ClientRepository) DeleteExpired(ctx context.Context, nowMs int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE lease_ms < ?`, nowMs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired clients: %w", err)
	}
	return result.RowsAffected()
}
