// Package testutil holds helpers shared by integration tests: a migrated
// Postgres connection and a fake Twitch API.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/onnwee/battlesheet/db"
)

// SetupTestDB creates a test database connection and runs migrations.
// It skips the test if TEST_PG_DSN environment variable is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(context.Background(), database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// Channel returns a channel name unique to the test and deletes its settings
// row on cleanup.
func Channel(t *testing.T, database *sql.DB) string {
	t.Helper()
	name := "it_" + strings.ToLower(strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	t.Cleanup(func() {
		_, _ = database.ExecContext(context.Background(), `DELETE FROM channel_settings WHERE channel=$1`, name)
	})
	return name
}
