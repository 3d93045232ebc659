// Package testutil builds throwaway stores and road fixtures for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jengzang/traffic-backend-go/internal/database"
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
	"github.com/stretchr/testify/require"
)

// NewStore opens a migrated SQLite store in a temporary directory.
func NewStore(t testing.TB) *repository.Store {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "traffic.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return repository.NewStore(db)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

// SeedStrip creates a road with the given limit and one strip through points.
func SeedStrip(t testing.TB, store *repository.Store, name string, maxspeed *int, points ...spatial.Point) *models.RoadStrip {
	t.Helper()
	ctx := context.Background()

	road := &models.Road{Name: StringPtr(name), MaxSpeed: maxspeed}
	require.NoError(t, store.Roads.CreateRoad(ctx, road))

	strip := &models.RoadStrip{RoadID: road.ID, Way: spatial.LineFromPoints(points), Road: road}
	require.NoError(t, store.Roads.CreateStrip(ctx, strip))
	return strip
}

// SeedClient creates an acknowledged client with a lease ending at leaseMs.
func SeedClient(t testing.TB, store *repository.Store, token string, leaseMs int64) *models.Client {
	t.Helper()

	c := &models.Client{Token: token, Device: "device-" + token, LeaseMs: leaseMs, Acknowledged: true}
	require.NoError(t, store.Clients.Create(context.Background(), c))
	return c
}

// SeedSpeed stores a reading for strip.
func SeedSpeed(t testing.TB, store *repository.Store, stripID int64, dir models.Direction, q models.Quality, value int) {
	t.Helper()

	require.NoError(t, store.Speeds.Upsert(context.Background(), models.Speed{
		StripID:   stripID,
		Direction: dir,
		Quality:   q,
		Value:     value,
	}))
}
