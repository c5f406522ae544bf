package transcribe

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/elvisthlg/whisper-api/internal/app/metrics"
)

// Normalizer converts arbitrary input audio into canonical mono 16kHz
// s16le PCM WAV bytes.
type Normalizer interface {
	Normalize(ctx context.Context, src []byte) ([]byte, error)
}

// Engine turns a normalized WAV file into plain transcribed text.
type Engine interface {
	Transcribe(ctx context.Context, wavPath, language, prompt string) (string, error)
}

// Worker is the queue's sole consumer. A single goroutine drives jobs
// through normalize -> temp file -> engine -> delivery, which is what
// guarantees at most one engine invocation at a time. Constructed once at
// startup; never reconstructed per request.
type Worker struct {
	queue      *Queue
	normalizer Normalizer
	engine     Engine
	history    History
	metrics    *metrics.Metrics
	logger     *zap.Logger

	stopping atomic.Bool
	done     chan struct{}
}

// NewWorker wires the worker to its collaborators. Start must be called
// exactly once.
func NewWorker(queue *Queue, normalizer Normalizer, engine Engine, history History, m *metrics.Metrics, logger *zap.Logger) *Worker {
	return &Worker{
		queue:      queue,
		normalizer: normalizer,
		engine:     engine,
		history:    history,
		metrics:    m,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start launches the consumer loop.
func (w *Worker) Start() {
	go w.run()
}

// Stop closes the queue and waits for the loop to finish. The in-flight
// job completes undisturbed; jobs still queued are failed with
// ErrQueueClosed so every pending wait resolves instead of hanging.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopping.Store(true)
	w.queue.Close()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.done)

	for job := range w.queue.Jobs() {
		w.metrics.QueueDepth.Set(float64(w.queue.Depth()))

		if w.stopping.Load() {
			w.fail(job, ErrQueueClosed, metrics.OutcomeQueueClosed)
			continue
		}
		w.process(job)
	}

	w.logger.Info("worker stopped")
}

// process drives a single job to its terminal result. Failures become the
// job's result; nothing here may terminate the loop or leak into the next
// job. The background context is deliberate: a caller-side timeout cancels
// only the wait, never the subprocesses.
func (w *Worker) process(job *Job) {
	ctx := context.Background()
	log := w.logger.With(zap.String("task_id", job.ID))
	log.Info("job started",
		zap.Int("audio_bytes", len(job.Audio)),
		zap.String("language", job.Language),
		zap.Duration("queued_for", time.Since(job.CreatedAt)),
	)

	if err := w.history.MarkRunning(ctx, job.ID); err != nil {
		log.Warn("failed to mark job running", zap.Error(err))
	}

	convertStart := time.Now()
	pcm, err := w.normalizer.Normalize(ctx, job.Audio)
	if err != nil {
		log.Warn("audio conversion failed", zap.Error(err))
		w.fail(job, err, metrics.OutcomeConversionFailed)
		return
	}
	w.metrics.ConvertDuration.Observe(time.Since(convertStart).Seconds())
	job.Audio = nil // the upload is no longer needed once normalized

	wavPath, err := writeTempWAV(job.ID, pcm)
	if err != nil {
		log.Error("failed to persist normalized audio", zap.Error(err))
		w.fail(job, &ConversionError{Err: err}, metrics.OutcomeConversionFailed)
		return
	}
	defer func() {
		if err := os.Remove(wavPath); err != nil && !os.IsNotExist(err) {
			// Cleanup failure is logged, never escalated to the caller.
			log.Warn("failed to remove temp wav", zap.String("path", wavPath), zap.Error(err))
		}
	}()

	engineStart := time.Now()
	text, err := w.engine.Transcribe(ctx, wavPath, job.Language, job.Prompt)
	if err != nil {
		log.Warn("engine failed", zap.Error(err))
		w.fail(job, err, metrics.OutcomeEngineFailed)
		return
	}
	w.metrics.TranscribeDuration.Observe(time.Since(engineStart).Seconds())

	if err := w.history.MarkSucceeded(ctx, job.ID, text); err != nil {
		log.Warn("failed to record job success", zap.Error(err))
	}
	w.metrics.JobsCompleted.WithLabelValues(metrics.OutcomeSucceeded).Inc()
	job.deliver(Result{Text: text})

	log.Info("job succeeded",
		zap.Int("text_len", len(text)),
		zap.Duration("engine_time", time.Since(engineStart)),
	)
}

func (w *Worker) fail(job *Job, cause error, outcome string) {
	if err := w.history.MarkFailed(context.Background(), job.ID, cause.Error()); err != nil {
		w.logger.Warn("failed to record job failure",
			zap.String("task_id", job.ID), zap.Error(err))
	}
	w.metrics.JobsCompleted.WithLabelValues(outcome).Inc()
	job.deliver(Result{Err: cause})
}

// writeTempWAV persists normalized audio to a job-scoped temporary file.
func writeTempWAV(jobID string, pcm []byte) (string, error) {
	f, err := os.CreateTemp("", fmt.Sprintf("whisper-%s-*.wav", jobID))
	if err != nil {
		return "", err
	}

	if _, err := f.Write(pcm); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
