package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/notesync/internal/config"
	"github.com/xxxsen/notesync/internal/db"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "notesync",
		Password: "notesync_pass",
		DBName:   "notesync_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	for _, table := range []string{"kv_entries", "kv_sorted_sets", "wiki_pages"} {
		if _, err := conn.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
	return conn, func() {
		_ = conn.Close()
	}
}
