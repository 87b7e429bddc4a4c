package sloc

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sloctool/sloctool/internal/db"
)

// mustOpenDB opens a throwaway migrated SQLite database for one test.
func mustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}
