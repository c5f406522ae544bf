package transcribe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/elvisthlg/whisper-api/internal/app/metrics"
)

// SubmitRequest carries one upload into the pipeline.
type SubmitRequest struct {
	Audio    []byte
	Language string
	Prompt   string
	FileName string
	FileSize int64
}

// SubmitResult always carries the job's ID so callers can correlate
// failures and poll the status endpoint after a timeout.
type SubmitResult struct {
	TaskID string
	Text   string
}

// Service is the dispatch boundary between request handlers and the worker:
// it constructs the job, enqueues it, and waits on the result slot up to the
// configured timeout.
type Service struct {
	queue       *Queue
	history     History
	metrics     *metrics.Metrics
	logger      *zap.Logger
	waitTimeout time.Duration
}

// NewService creates the dispatch service. waitTimeout bounds how long a
// caller blocks on a result, not how long a job may run.
func NewService(queue *Queue, history History, m *metrics.Metrics, logger *zap.Logger, waitTimeout time.Duration) *Service {
	return &Service{
		queue:       queue,
		history:     history,
		metrics:     m,
		logger:      logger,
		waitTimeout: waitTimeout,
	}
}

// Submit enqueues a job and waits for its result. The returned SubmitResult
// is non-nil even on error so the task ID survives timeouts and failures.
//
// A timeout resolves only the caller's wait: the worker finishes the job
// undisturbed and records its true outcome in the history store.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	job := NewJob(req.Audio, req.Language, req.Prompt)
	res := &SubmitResult{TaskID: job.ID}

	rec := &JobRecord{
		ID:        job.ID,
		Status:    StatusQueued,
		FileName:  req.FileName,
		FileSize:  req.FileSize,
		Language:  req.Language,
		CreatedAt: job.CreatedAt,
	}
	if err := s.history.Create(ctx, rec); err != nil {
		// The pipeline can still run; only the status endpoint degrades.
		s.logger.Warn("failed to record queued job",
			zap.String("task_id", job.ID), zap.Error(err))
	}

	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("enqueue rejected",
			zap.String("task_id", job.ID), zap.Error(err))
		if herr := s.history.MarkFailed(ctx, job.ID, err.Error()); herr != nil {
			s.logger.Warn("failed to record enqueue rejection",
				zap.String("task_id", job.ID), zap.Error(herr))
		}
		return res, err
	}
	s.metrics.JobsSubmitted.Inc()
	s.metrics.QueueDepth.Set(float64(s.queue.Depth()))

	timer := time.NewTimer(s.waitTimeout)
	defer timer.Stop()

	select {
	case r := <-job.Wait():
		if r.Err != nil {
			return res, r.Err
		}
		res.Text = r.Text
		return res, nil
	case <-timer.C:
		s.metrics.CallerTimeouts.Inc()
		s.logger.Info("caller wait timed out",
			zap.String("task_id", job.ID),
			zap.Duration("waited", s.waitTimeout))
		return res, ErrTimedOut
	case <-ctx.Done():
		return res, ctx.Err()
	}
}

// Status returns the persisted state of a job, including outcomes reached
// after the original caller stopped waiting.
func (s *Service) Status(ctx context.Context, id string) (*JobRecord, error) {
	return s.history.Get(ctx, id)
}
