package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"musicbox/db"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.InitDB(ctx, conn, db.SQLite))
	return conn
}
