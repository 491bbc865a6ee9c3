// Package dbtest opens throwaway SQLite databases with the production
// schema applied, for use from tests in other packages.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/sumit010804/food-share-sub000/internal/database"
)

// New returns a migrated database living in t.TempDir().  The pool is
// capped at one connection so concurrent tests serialise on the single
// SQLite writer instead of failing with SQLITE_BUSY.
func New(t *testing.T) *dbx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "foodshare.db")
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := dbx.NewFromDB(sqlDB, "sqlite")
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}
