package sqldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DialectSQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openSeededDB(t *testing.T) *DB {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, SeedDemo(context.Background(), db))
	return db
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dialect")
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	db, err := Open(context.Background(), DialectSQLite, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.SQL.Exec(`CREATE TABLE t (a INTEGER)`)
	require.NoError(t, err)
}

func TestBind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.bind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &DB{Dialect: DialectSQLite}
	assert.Equal(t, "SELECT ?", lite.bind("SELECT ?"))
}

func TestSeedDemo_Idempotent(t *testing.T) {
	db := openSeededDB(t)

	// Seeding again must not duplicate rows.
	require.NoError(t, SeedDemo(context.Background(), db))

	var albums int
	require.NoError(t, db.SQL.QueryRow(`SELECT COUNT(*) FROM Album`).Scan(&albums))
	assert.Equal(t, 5, albums)
}
