package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/infrastructure/config"
)

func sqliteConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "tracker.db")}
}

func TestDriverName(t *testing.T) {
	name, err := DriverName("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", name)

	name, err = DriverName("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", name)

	_, err = DriverName("mysql")
	assert.Error(t, err)
}

func TestMigrator_UpVersionDown(t *testing.T) {
	cfg := sqliteConfig(t)

	mg, err := NewMigrator(cfg)
	require.NoError(t, err)
	defer mg.Close()

	version, dirty, err := mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	changed, err := mg.Run(MigrateUp, 0)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = mg.Run(MigrateUp, 0)
	require.NoError(t, err)
	assert.False(t, changed, "second run has nothing to apply")

	version, _, err = mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	changed, err = mg.Run(MigrateDown, 0)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = mg.Run("sideways", 0)
	assert.Error(t, err)
}

func TestDB_HealthAndTransactions(t *testing.T) {
	cfg := sqliteConfig(t)
	require.NoError(t, Migrate(cfg))

	db, err := New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	assert.Equal(t, "sqlite", db.Driver())
	require.NoError(t, db.HealthCheck(ctx))
	assert.Equal(t, "sqlite", db.GetConnectionInfo()["driver"])

	insert := func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, fields) VALUES ('tasks', 'a', '{}')`)
		return err
	}

	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		require.NoError(t, insert(tx))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents`))
	assert.Equal(t, 0, count, "rolled back")

	require.NoError(t, db.WithTransaction(ctx, insert))
	require.NoError(t, db.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents`))
	assert.Equal(t, 1, count)
}
