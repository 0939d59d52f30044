// Package databasetest opens migrated in-memory databases for tests.
package databasetest

import (
	"testing"

	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"fortunegate/internal/database"
)

// New returns a migrated in-memory SQLite database closed at the end of the test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
