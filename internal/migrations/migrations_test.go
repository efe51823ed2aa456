package migrations

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	// A private :memory: database exists per connection
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRun_CreatesSchema(t *testing.T) {
	db := openTestDB(t)

	if err := Run(db); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO load_runs (target, request_count, mode, measure, pool_name, started_at, status)
		VALUES ('http://localhost', 1, 'thread', 'completion', 'p', CURRENT_TIMESTAMP, 'running')
	`)
	if err != nil {
		t.Errorf("Expected full load_runs schema: %v", err)
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != len(AllMigrations) {
		t.Errorf("Expected version %d, got: %d", len(AllMigrations), version)
	}
}

func TestApply_UpgradesInOrderOnce(t *testing.T) {
	db := openTestDB(t)

	upgrades := []Migration{
		{Version: 1, Name: "Add note column", Up: `ALTER TABLE load_runs ADD COLUMN note TEXT NOT NULL DEFAULT '';`},
		{Version: 2, Name: "Add note index", Up: `CREATE INDEX idx_load_runs_note ON load_runs(note);`},
	}

	// A second pass must skip applied versions; re-running the ALTER would fail
	for i := 0; i < 2; i++ {
		if err := apply(db, upgrades); err != nil {
			t.Fatalf("apply #%d failed: %v", i+1, err)
		}
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("Expected version 2, got: %d", version)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 recorded migrations, got: %d", count)
	}
}

func TestApply_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)

	upgrades := []Migration{
		{Version: 1, Name: "Broken", Up: `ALTER TABLE missing_table ADD COLUMN x TEXT;`},
	}
	err := apply(db, upgrades)
	if err == nil || !strings.Contains(err.Error(), "failed to apply migration 1 (Broken)") {
		t.Fatalf("Expected migration failure, got: %v", err)
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("Failed migration must not be recorded, got version %d", version)
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 3; i++ {
		if err := Run(db); err != nil {
			t.Fatalf("Run #%d failed: %v", i+1, err)
		}
	}
}
