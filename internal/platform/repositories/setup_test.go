package repositories

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"beacon/internal/platform/database"
	"beacon/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	// every new connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)

	if _, err := database.Migrate(db, migrations.FS); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
