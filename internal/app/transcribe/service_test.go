package transcribe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPipeline(t *testing.T, eng Engine, waitTimeout time.Duration) (*Service, *memHistory, *Worker) {
	t.Helper()

	queue := NewQueue(16)
	history := newMemHistory()
	m := newTestMetrics()
	logger := zap.NewNop()

	worker := NewWorker(queue, &stubNormalizer{}, eng, history, m, logger)
	service := NewService(queue, history, m, logger, waitTimeout)

	worker.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		worker.Stop(ctx)
	})

	return service, history, worker
}

func TestServiceSubmitRoundTrip(t *testing.T) {
	eng := &stubEngine{fn: func(ctx context.Context, wavPath, language, prompt string) (string, error) {
		return "the quick brown fox", nil
	}}
	service, history, _ := newTestPipeline(t, eng, 5*time.Second)

	req := SubmitRequest{Audio: []byte("audio"), Language: "en", FileName: "sample.wav"}

	first, err := service.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "the quick brown fox", first.Text)
	assert.NotEmpty(t, first.TaskID)

	second, err := service.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "the quick brown fox", second.Text)
	assert.NotEqual(t, first.TaskID, second.TaskID, "each submission gets a fresh job ID")

	rec, err := history.Get(context.Background(), first.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, rec.Status)
	assert.Equal(t, "the quick brown fox", rec.Text)
	assert.Equal(t, "sample.wav", rec.FileName)
}

func TestServiceSubmitTimeoutLeavesJobRunning(t *testing.T) {
	engineDone := make(chan struct{})
	eng := &stubEngine{fn: func(ctx context.Context, wavPath, language, prompt string) (string, error) {
		defer close(engineDone)
		time.Sleep(150 * time.Millisecond)
		return "late but correct", nil
	}}
	service, history, _ := newTestPipeline(t, eng, 20*time.Millisecond)

	res, err := service.Submit(context.Background(), SubmitRequest{Audio: []byte("audio")})
	assert.ErrorIs(t, err, ErrTimedOut)
	require.NotNil(t, res)
	assert.NotEmpty(t, res.TaskID, "task ID must survive a timeout for correlation")

	select {
	case <-engineDone:
	case <-time.After(2 * time.Second):
		t.Fatal("caller timeout must not abort the in-flight engine run")
	}

	// The status re-check eventually reflects the true completion.
	require.Eventually(t, func() bool {
		rec, err := history.Get(context.Background(), res.TaskID)
		return err == nil && rec.Status == StatusSucceeded && rec.Text == "late but correct"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServiceLaterJobCompletesAfterEarlierTimeout(t *testing.T) {
	eng := &stubEngine{fn: func(ctx context.Context, wavPath, language, prompt string) (string, error) {
		if language == "slow" {
			time.Sleep(100 * time.Millisecond)
		}
		return "done:" + language, nil
	}}
	service, _, _ := newTestPipeline(t, eng, 30*time.Millisecond)

	_, err := service.Submit(context.Background(), SubmitRequest{Audio: []byte("a"), Language: "slow"})
	assert.ErrorIs(t, err, ErrTimedOut)

	// The next job waits behind the slow one but still completes.
	res, err := service.Submit(context.Background(), SubmitRequest{Audio: []byte("b"), Language: "fast"})
	if err != nil {
		// The slow job may still hold the worker slot; wait it out.
		assert.ErrorIs(t, err, ErrTimedOut)
		require.Eventually(t, func() bool {
			rec, gerr := service.Status(context.Background(), res.TaskID)
			return gerr == nil && rec.Status == StatusSucceeded
		}, 2*time.Second, 10*time.Millisecond)
		return
	}
	assert.Equal(t, "done:fast", res.Text)
}

func TestServiceSubmitQueueFull(t *testing.T) {
	queue := NewQueue(1)
	history := newMemHistory()
	service := NewService(queue, history, newTestMetrics(), zap.NewNop(), 50*time.Millisecond)

	// No worker is draining; fill the only slot.
	require.NoError(t, queue.Enqueue(NewJob([]byte("filler"), "", "")))

	res, err := service.Submit(context.Background(), SubmitRequest{Audio: []byte("audio")})
	assert.ErrorIs(t, err, ErrQueueFull)

	rec, err := history.Get(context.Background(), res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
}

func TestServiceSubmitQueueClosed(t *testing.T) {
	queue := NewQueue(4)
	queue.Close()
	service := NewService(queue, newMemHistory(), newTestMetrics(), zap.NewNop(), 50*time.Millisecond)

	_, err := service.Submit(context.Background(), SubmitRequest{Audio: []byte("audio")})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestServiceStatusUnknownJob(t *testing.T) {
	service := NewService(NewQueue(1), newMemHistory(), newTestMetrics(), zap.NewNop(), time.Second)

	_, err := service.Status(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
