package migrations

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestScripts(t *testing.T) {
	up, err := Scripts(Up)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_schema.up.sql"}, up)

	down, err := Scripts(Down)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_schema.down.sql"}, down)
}

func TestRun_UpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	_, err := Run(ctx, db, Up)
	require.NoError(t, err)

	// idempotent
	_, err = Run(ctx, db, Up)
	require.NoError(t, err)

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	assert.Equal(t, []string{"daily_observations", "stations"}, tables)

	_, err = Run(ctx, db, Down)
	require.NoError(t, err)

	tables = nil
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table'`))
	assert.Empty(t, tables)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("UP")
	require.NoError(t, err)
	assert.Equal(t, Up, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
