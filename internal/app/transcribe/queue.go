package transcribe

import "sync"

// Queue is a bounded FIFO job queue. Any number of request goroutines
// enqueue concurrently; the single worker is the only consumer, which is
// what serializes access to the transcription engine.
type Queue struct {
	jobs chan *Job

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue holding at most capacity pending jobs. A full
// queue rejects further submissions instead of growing without bound.
func NewQueue(capacity int) *Queue {
	return &Queue{
		jobs: make(chan *Job, capacity),
	}
}

// Enqueue makes the job visible to the worker in arrival order. It fails
// fast with ErrQueueFull under sustained overload and with ErrQueueClosed
// once shutdown has begun.
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Jobs returns the consumer end of the queue. The channel is closed by
// Close, which is how the worker observes shutdown instead of blocking
// forever on an empty queue.
func (q *Queue) Jobs() <-chan *Job {
	return q.jobs
}

// Depth reports the number of jobs currently waiting.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Close stops accepting jobs and signals the consumer. Safe to call more
// than once. Jobs already queued remain readable so pending waits can be
// resolved during drain.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}
