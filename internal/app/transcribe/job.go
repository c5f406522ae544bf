package transcribe

import (
	"time"

	"github.com/google/uuid"
)

// Result is the terminal outcome of a job: transcribed text or an error,
// never both.
type Result struct {
	Text string
	Err  error
}

// Job is one transcription request in flight. It is created together with
// its one-shot result slot when a request arrives, enqueued exactly once,
// and disposable as soon as the single result read completes.
type Job struct {
	ID        string
	Audio     []byte
	Language  string
	Prompt    string
	CreatedAt time.Time

	// result is a single-slot buffer written exactly once by the worker.
	// The buffer makes delivery fire-and-forget: the send completes even
	// when the caller already gave up waiting.
	result chan Result
}

// NewJob builds a job with a fresh unique ID and an empty result slot.
func NewJob(audio []byte, language, prompt string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Audio:     audio,
		Language:  language,
		Prompt:    prompt,
		CreatedAt: time.Now(),
		result:    make(chan Result, 1),
	}
}

// Wait exposes the result slot to the single waiting caller.
func (j *Job) Wait() <-chan Result {
	return j.result
}

// deliver writes the terminal result without ever blocking. The slot holds
// one value and each job has exactly one delivery, so the send cannot be
// dropped; the default branch only guards the write-once invariant.
func (j *Job) deliver(res Result) {
	select {
	case j.result <- res:
	default:
	}
}
