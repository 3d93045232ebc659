package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "nested", "traffic.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	m := NewMigrator(db, nil)
	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.True(t, applied[1])

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigratorOrderAndFailure(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	files := fstest.MapFS{
		"002_more.sql":   {Data: []byte(`ALTER TABLE things ADD COLUMN size INTEGER;`)},
		"001_things.sql": {Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY);`)},
		"notes.txt":      {Data: []byte(`ignored`)},
		"003_broken.sql": {Data: []byte(`CREATE TABLE oops (`)},
	}
	n, err := NewMigrator(db, files).Up(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, n)

	applied, err := NewMigrator(db, files).Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true}, applied)

	_, err = db.Exec(`INSERT INTO things (id, size) VALUES (1, 2)`)
	assert.NoError(t, err)
}

func TestMigratorRejectsDuplicateVersions(t *testing.T) {
	db := openTemp(t)
	files := fstest.MapFS{
		"001_a.sql": {Data: []byte(`SELECT 1;`)},
		"001_b.sql": {Data: []byte(`SELECT 1;`)},
	}
	_, err := NewMigrator(db, files).Up(context.Background())
	assert.ErrorContains(t, err, "share version 1")
}

func TestTransactionRollsBack(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()
	_, err := db.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Transaction(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO t VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, Transaction(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t VALUES (2)`)
		return err
	}))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
}
