package transcribe

import (
	"errors"
	"fmt"
)

// Sentinel errors raised at the submission/wait boundary.
var (
	// ErrTimedOut means the caller's wait exceeded the configured bound.
	// The job itself keeps running; its terminal state is still recorded.
	ErrTimedOut = errors.New("transcription wait timed out")

	// ErrQueueClosed means the service is draining and no longer accepts jobs.
	ErrQueueClosed = errors.New("job queue is closed")

	// ErrQueueFull means the bounded queue rejected the job (backpressure).
	ErrQueueFull = errors.New("job queue is full")

	// ErrJobNotFound means no history record exists for the requested ID.
	ErrJobNotFound = errors.New("job not found")
)

// ConversionError reports a failed audio normalization. Diag carries the
// conversion tool's output and is meant for logs, not for clients.
type ConversionError struct {
	Diag string
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Diag != "" {
		return fmt.Sprintf("audio conversion failed: %s", e.Diag)
	}
	return fmt.Sprintf("audio conversion failed: %v", e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// EngineError reports a failed or unparseable transcription engine run.
// Diag carries the engine's stderr/stdout and is meant for logs only.
type EngineError struct {
	Diag string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Diag != "" {
		return fmt.Sprintf("transcription engine failed: %s", e.Diag)
	}
	return fmt.Sprintf("transcription engine failed: %v", e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
