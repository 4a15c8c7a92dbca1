package sqlite

import (
	"context"
	"database/sql"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// memoryDSN names an in-memory database private to one test. cache=shared
// lets the writer and reader pools see the same profiles and session_data
// tables; journal_mode is left out because WAL does not apply in memory.
func memoryDSN(t *testing.T) string {
	return "file:" + url.PathEscape(t.Name()) +
		"?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
}

func openPool(t *testing.T, dsn string, maxConns int) *sql.DB {
	t.Helper()

	pool, err := sql.Open("sqlite", dsn)
	require.NoError(t, err, "open %s pool", dsn)
	pool.SetMaxOpenConns(maxConns)
	require.NoError(t, pool.PingContext(context.Background()), "ping %s pool", dsn)
	return pool
}

// setupTestDB returns a migrated store database that lives for one test.
// The writer is opened first and closed last so the shared in-memory
// database is not dropped while the reader pool still holds it.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := memoryDSN(t)
	writer := openPool(t, dsn, 1)
	t.Cleanup(func() { _ = writer.Close() })
	reader := openPool(t, dsn, 4)
	t.Cleanup(func() { _ = reader.Close() })

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	require.NoError(t, RunMigrations(db.Writer), "migrate store schema")
	return db
}
