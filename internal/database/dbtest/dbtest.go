// Package dbtest opens throwaway migrated SQLite databases for store tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/act-prep/backend/internal/database"
)

// Open returns a fresh, fully migrated SQLite database in a temp directory.
func Open(t testing.TB) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(database.SQLiteDialect{}, path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user row and returns its id.
func CreateUser(t testing.TB, db *database.DB, email string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO users (email, name, password) VALUES (?, ?, ?) RETURNING id`,
		email, "Test User", "x",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}
