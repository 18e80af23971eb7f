package db

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteMigrations(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := New(ctx, Config{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "data", "reports.db"),
	}, logger)
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.RunMigrations(ctx))
	// second run is a no-op
	require.NoError(t, database.RunMigrations(ctx))

	var n int
	err = database.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "mysql"}, nil)
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "/tmp/r.db?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", SQLiteDSN("/tmp/r.db"))
}
