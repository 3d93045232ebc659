package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jengzang/traffic-backend-go/internal/database"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos bundles every repository over one handle
type Repos struct {
	Clients     *ClientRepository
	Roads       *RoadRepository
	Speeds      *SpeedRepository
	Congestions *CongestionRepository
	UserData    *UserDataRepository
	Routes      *RouteRepository
	Problems    *ProblemRepository
	Runs        *MaintenanceRunRepository
}

// NewRepos creates repositories sharing db
func NewRepos(db DBTX) Repos {
	return Repos{
		Clients:     NewClientRepository(db),
		Roads:       NewRoadRepository(db),
		Speeds:      NewSpeedRepository(db),
		Congestions: NewCongestionRepository(db),
		UserData:    NewUserDataRepository(db),
		Routes:      NewRouteRepository(db),
		Problems:    NewProblemRepository(db),
		Runs:        NewMaintenanceRunRepository(db),
	}
}

// Store is the Road Model persistence, usable directly or inside a transaction
type Store struct {
	Repos
	db *sql.DB
}

// NewStore wraps an open database
func NewStore(db *sql.DB) *Store {
	return &Store{Repos: NewRepos(db), db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InTx runs fn with repositories bound to one transaction.
func (s *Store) InTx(ctx context.Context, fn func(Repos) error) error {
	return database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		return fn(NewRepos(tx))
	})
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullableBool(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

func nullableInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullableInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
