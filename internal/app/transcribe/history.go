package transcribe

import (
	"context"
	"time"
)

// Status is a job's position in its lifecycle. Terminal states are reached
// exactly once. The waiting caller's timeout is not a job state: a job whose
// caller gave up still moves to succeeded or failed.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// JobRecord is the persisted view of a job, kept so a caller that timed out
// can re-check the true outcome later.
type JobRecord struct {
	ID           string
	Status       Status
	FileName     string
	FileSize     int64
	Language     string
	Text         string
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// History records job lifecycle transitions. The worker writes terminal
// states regardless of whether the original caller is still listening.
type History interface {
	Create(ctx context.Context, rec *JobRecord) error
	MarkRunning(ctx context.Context, id string) error
	MarkSucceeded(ctx context.Context, id string, text string) error
	MarkFailed(ctx context.Context, id string, message string) error
	Get(ctx context.Context, id string) (*JobRecord, error)
}
