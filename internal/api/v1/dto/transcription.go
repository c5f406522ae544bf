package dto

import (
	"time"

	"github.com/elvisthlg/whisper-api/internal/app/transcribe"
)

// CreateTranscriptionForm captures the optional form fields submitted
// alongside the audio file.
type CreateTranscriptionForm struct {
	Language string `form:"language" binding:"omitempty,min=2,max=8"`
	Prompt   string `form:"prompt" binding:"omitempty,max=1024"`
}

// TranscriptionResponse is the success body for a completed transcription.
type TranscriptionResponse struct {
	TaskID string `json:"task_id"`
	Text   string `json:"text"`
}

// JobStatusResponse reports a job's persisted state, used by callers whose
// wait timed out to re-check the true outcome.
type JobStatusResponse struct {
	TaskID      string     `json:"task_id"`
	Status      string     `json:"status"`
	Text        string     `json:"text,omitempty"`
	Error       string     `json:"error,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	Language    string     `json:"language,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJobStatusResponse converts a history record to its API shape. The
// stored error message is internal detail; clients get a stable marker.
func NewJobStatusResponse(rec *transcribe.JobRecord) *JobStatusResponse {
	resp := &JobStatusResponse{
		TaskID:      rec.ID,
		Status:      string(rec.Status),
		Text:        rec.Text,
		FileName:    rec.FileName,
		Language:    rec.Language,
		CreatedAt:   rec.CreatedAt,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
	}
	if rec.Status == transcribe.StatusFailed {
		resp.Error = "transcription failed"
	}
	return resp
}
