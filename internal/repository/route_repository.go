package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
	"github.com/paulmach/orb"
)

// RouteRepository handles client routes
type RouteRepository struct {
	db DBTX
}

// NewRouteRepository creates a new route repository
func NewRouteRepository(db DBTX) *RouteRepository {
	return &RouteRepository{db: db}
}

const routeColumns = `id, client_id, polyline_wkt, started_ms, updated, provider_query`

// Save stores the client's route, replacing any previous one
func (r *RouteRepository) Save(ctx context.Context, route *models.Route) error {
	if route.ClientID == nil {
		return fmt.Errorf("route has no owner")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO routes (client_id, polyline_wkt, started_ms, updated, provider_query)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			polyline_wkt = excluded.polyline_wkt,
			started_ms = excluded.started_ms,
			updated = excluded.updated,
			provider_query = excluded.provider_query`,
		*route.ClientID, spatial.EncodeLine(route.Way), route.StartedMs, route.Updated, route.ProviderQuery,
	)
	if err != nil {
		return fmt.Errorf("failed to save route: %w", err)
	}

	// LastInsertId is unreliable on the update path
	saved, err := r.GetByClient(ctx, *route.ClientID)
	if err != nil {
		return err
	}
	if saved != nil {
		route.ID = saved.ID
	}
	return nil
}

// GetByClient returns the route owned by the client, nil if none
func (r *RouteRepository) GetByClient(ctx context.Context, clientID int64) (*models.Route, error) {
	routes, err := r.query(ctx, `SELECT `+routeColumns+` FROM routes WHERE client_id = ?`, clientID)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, nil
	}
	return &routes[0], nil
}

// ListOwned returns every route that still has a client
func (r *RouteRepository) ListOwned(ctx context.Context) ([]models.Route, error) {
	return r.query(ctx, `SELECT `+routeColumns+` FROM routes WHERE client_id IS NOT NULL ORDER BY id`)
}

// MarkDelivered clears the updated flag, but only while the stored polyline
// is still the delivered one. A newer way stays flagged.
func (r *RouteRepository) MarkDelivered(ctx context.Context, id int64, delivered orb.LineString) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE routes SET updated = 0 WHERE id = ? AND polyline_wkt = ?`,
		id, spatial.EncodeLine(delivered)); err != nil {
		return fmt.Errorf("failed to mark route delivered: %w", err)
	}
	return nil
}

// Replace swaps in a new polyline and flags the route for redelivery. The
// write only lands if the row still holds the query and way of old; it
// reports false when the route was recomputed or removed in the meantime.
func (r *RouteRepository) Replace(ctx context.Context, old *models.Route, way orb.LineString) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE routes SET polyline_wkt = ?, updated = 1
		WHERE id = ? AND provider_query = ? AND polyline_wkt = ?`,
		spatial.EncodeLine(way), old.ID, old.ProviderQuery, spatial.EncodeLine(old.Way))
	if err != nil {
		return false, fmt.Errorf("failed to replace route: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to replace route: %w", err)
	}
	return n > 0, nil
}

// DeleteByClient removes the client's route
func (r *RouteRepository) DeleteByClient(ctx context.Context, clientID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM routes WHERE client_id = ?`, clientID)
	if err != nil {
		return false, fmt.Errorf("failed to delete route: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// DeleteOrphans removes routes whose client is gone
func (r *RouteRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM routes
		WHERE client_id IS NULL OR client_id NOT IN (SELECT id FROM clients)`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned routes: %w", err)
	}
	return result.RowsAffected()
}

func (r *RouteRepository) query(ctx context.Context, query string, args ...any) ([]models.Route, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var out []models.Route
	for rows.Next() {
		var (
			route    models.Route
			clientID sql.NullInt64
			wkt      string
		)
		if err := rows.Scan(&route.ID, &clientID, &wkt, &route.StartedMs, &route.Updated, &route.ProviderQuery); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		route.ClientID = nullableInt64(clientID)
		if route.Way, err = spatial.DecodeLine(wkt); err != nil {
			return nil, fmt.Errorf("route %d: %w", route.ID, err)
		}
		out = append(out, route)
	}
	return out, rows.Err()
}
