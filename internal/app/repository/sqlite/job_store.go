// Package sqlite persists job history so a caller that timed out can
// re-check the true outcome of its job later.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/elvisthlg/whisper-api/internal/app/transcribe"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	file_name     TEXT NOT NULL DEFAULT '',
	file_size     INTEGER NOT NULL DEFAULT 0,
	language      TEXT NOT NULL DEFAULT '',
	transcription TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	started_at    TIMESTAMP,
	completed_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

// JobStore is a sqlite-backed transcribe.History implementation.
type JobStore struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if needed and ensures
// the schema exists.
func Open(dbPath string) (*JobStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &JobStore{db: db}, nil
}

func (s *JobStore) Close() error {
	return s.db.Close()
}

// Create inserts a freshly queued job.
func (s *JobStore) Create(ctx context.Context, rec *transcribe.JobRecord) error {
	const insertSQL = `
		INSERT INTO jobs (id, status, file_name, file_size, language, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, insertSQL,
		rec.ID, string(rec.Status), rec.FileName, rec.FileSize, rec.Language, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

// MarkRunning records that the worker dequeued the job.
func (s *JobStore) MarkRunning(ctx context.Context, id string) error {
	const updateSQL = `UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`
	return s.update(ctx, updateSQL, string(transcribe.StatusRunning), time.Now(), id)
}

// MarkSucceeded records the terminal success state and the transcript.
func (s *JobStore) MarkSucceeded(ctx context.Context, id, text string) error {
	const updateSQL = `UPDATE jobs SET status = ?, transcription = ?, completed_at = ? WHERE id = ?`
	return s.update(ctx, updateSQL, string(transcribe.StatusSucceeded), text, time.Now(), id)
}

// MarkFailed records the terminal failure state. The message is internal
// diagnostic detail; the API layer never echoes it to clients.
func (s *JobStore) MarkFailed(ctx context.Context, id, message string) error {
	const updateSQL = `UPDATE jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`
	return s.update(ctx, updateSQL, string(transcribe.StatusFailed), message, time.Now(), id)
}

// Get returns the persisted record, or transcribe.ErrJobNotFound.
func (s *JobStore) Get(ctx context.Context, id string) (*transcribe.JobRecord, error) {
	const querySQL = `
		SELECT id, status, file_name, file_size, language, transcription,
		       error_message, created_at, started_at, completed_at
		FROM jobs WHERE id = ?`

	var (
		rec       transcribe.JobRecord
		status    string
		started   sql.NullTime
		completed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, querySQL, id).Scan(
		&rec.ID, &status, &rec.FileName, &rec.FileSize, &rec.Language,
		&rec.Text, &rec.ErrorMessage, &rec.CreatedAt, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transcribe.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	rec.Status = transcribe.Status(status)
	if started.Valid {
		rec.StartedAt = &started.Time
	}
	if completed.Valid {
		rec.CompletedAt = &completed.Time
	}
	return &rec, nil
}

func (s *JobStore) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return transcribe.ErrJobNotFound
	}
	return nil
}
