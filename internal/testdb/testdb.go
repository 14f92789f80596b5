// Package testdb opens throwaway in-memory SQLite databases for tests.
package testdb

import (
	"bitwise74/auth-api/db"
	"fmt"
	"testing"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New returns a migrated database private to t, closed on cleanup.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz", 12)
	if err != nil {
		t.Fatal(err)
	}

	gdb, err := db.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)))
	if err != nil {
		t.Fatal(err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatal(err)
	}
	// One connection keeps the shared-cache database alive and avoids
	// SQLITE_LOCKED between pooled connections.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return gdb
}
