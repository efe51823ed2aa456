package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/greatstep93/client-app/internal/migrations"
	_ "github.com/mattn/go-sqlite3"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Run is one dispatcher run record
type Run struct {
	ID          int64
	Target      string
	Count       int
	Mode        string
	Measure     string
	PoolName    string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	ElapsedMs   int64
	Succeeded   int
	Failed      int
}

// IsCompleted returns true if the run has finished
func (r *Run) IsCompleted() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled
}

// Journal persists run records in SQLite
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at dbPath
func Open(dbPath string) (*Journal, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// Serialize writers from concurrent runs; also keeps :memory: on one connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

// CreateRun inserts a running record and sets run.ID
func (j *Journal) CreateRun(run *Run) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}
	result, err := j.db.Exec(`
		INSERT INTO load_runs
		(target, request_count, mode, measure, pool_name, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.Target, run.Count, run.Mode, run.Measure, run.PoolName, run.StartedAt, run.Status)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// FinishRun stores the final outcome of a run
func (j *Journal) FinishRun(run *Run) error {
	_, err := j.db.Exec(`
		UPDATE load_runs
		SET completed_at = ?, status = ?, elapsed_ms = ?, succeeded = ?, failed = ?
		WHERE id = ?
	`, run.CompletedAt, run.Status, run.ElapsedMs, run.Succeeded, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", run.ID, err)
	}
	return nil
}

const selectRun = `
	SELECT id, target, request_count, mode, measure, pool_name, started_at, completed_at,
	       status, elapsed_ms, succeeded, failed
	FROM load_runs`

// GetRun retrieves a run by ID
func (j *Journal) GetRun(id int64) (*Run, error) {
	return scanRun(j.db.QueryRow(selectRun+" WHERE id = ?", id))
}

// ListRuns returns the most recent runs first
func (j *Journal) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(selectRun+" ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime

	err := s.Scan(&run.ID, &run.Target, &run.Count, &run.Mode, &run.Measure, &run.PoolName,
		&run.StartedAt, &completedAt, &run.Status, &run.ElapsedMs, &run.Succeeded, &run.Failed)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}
