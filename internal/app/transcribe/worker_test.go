package transcribe

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elvisthlg/whisper-api/internal/app/metrics"
)

// memHistory is an in-memory History used across the package tests.
type memHistory struct {
	mu   sync.Mutex
	recs map[string]*JobRecord
}

func newMemHistory() *memHistory {
	return &memHistory{recs: make(map[string]*JobRecord)}
}

func (h *memHistory) Create(ctx context.Context, rec *JobRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *rec
	h.recs[rec.ID] = &cp
	return nil
}

func (h *memHistory) MarkRunning(ctx context.Context, id string) error {
	return h.set(id, func(r *JobRecord) {
		now := time.Now()
		r.Status = StatusRunning
		r.StartedAt = &now
	})
}

func (h *memHistory) MarkSucceeded(ctx context.Context, id, text string) error {
	return h.set(id, func(r *JobRecord) {
		now := time.Now()
		r.Status = StatusSucceeded
		r.Text = text
		r.CompletedAt = &now
	})
}

func (h *memHistory) MarkFailed(ctx context.Context, id, message string) error {
	return h.set(id, func(r *JobRecord) {
		now := time.Now()
		r.Status = StatusFailed
		r.ErrorMessage = message
		r.CompletedAt = &now
	})
}

func (h *memHistory) Get(ctx context.Context, id string) (*JobRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.recs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *rec
	return &cp, nil
}

func (h *memHistory) set(id string, fn func(*JobRecord)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.recs[id]
	if !ok {
		// Worker tests enqueue jobs directly without a Create call;
		// materialize the record so transitions still land.
		rec = &JobRecord{ID: id, Status: StatusQueued, CreatedAt: time.Now()}
		h.recs[id] = rec
	}
	fn(rec)
	return nil
}

type stubNormalizer struct {
	fn func(ctx context.Context, src []byte) ([]byte, error)
}

func (n *stubNormalizer) Normalize(ctx context.Context, src []byte) ([]byte, error) {
	if n.fn != nil {
		return n.fn(ctx, src)
	}
	return src, nil
}

type stubEngine struct {
	fn func(ctx context.Context, wavPath, language, prompt string) (string, error)
}

func (e *stubEngine) Transcribe(ctx context.Context, wavPath, language, prompt string) (string, error) {
	if e.fn != nil {
		return e.fn(ctx, wavPath, language, prompt)
	}
	return "stub text", nil
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestWorkerProcessesJobsInSubmissionOrder(t *testing.T) {
	queue := NewQueue(16)
	history := newMemHistory()

	var mu sync.Mutex
	var order []string
	eng := &stubEngine{fn: func(ctx context.Context, wavPath, language, prompt string) (string, error) {
		mu.Lock()
		order = append(order, language)
		mu.Unlock()
		return "text-" + language, nil
	}}

	worker := NewWorker(queue, &stubNormalizer{}, eng, history, newTestMetrics(), zap.NewNop())

	want := []string{"j0", "j1", "j2", "j3", "j4"}
	jobs := make([]*Job, 0, len(want))
	for _, lang := range want {
		job := NewJob([]byte("audio"), lang, "")
		require.NoError(t, queue.Enqueue(job))
		jobs = append(jobs, job)
	}

	worker.Start()
	defer worker.Stop(context.Background())

	for i, job := range jobs {
		select {
		case res := <-job.Wait():
			require.NoError(t, res.Err)
			assert.Equal(t, "text-"+want[i], res.Text)
		case <-time.After(2 * time.Second):
			t.Fatalf("job %d never delivered", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, order)
}

func TestWorkerRunsEngineOneAtATime(t *testing.T) {
	queue := NewQueue(64)
	history := newMemHistory()

	var active, maxActive int64
	eng := &stubEngine{fn: func(ctx context.Context, wavPath, language, prompt string) (string, error) {
		cur := atomic.AddInt64(&active, 1)
		for {
			prev := atomic.LoadInt64(&maxActive)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxActive, prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return "ok", nil
	}}

	worker := NewWorker(queue, &stubNormalizer{}, eng, history, newTestMetrics(), zap.NewNop())
	worker.Start()
	defer worker.Stop(context.Background())

	const n = 20
	var wg sync.WaitGroup
	jobs := make([]*Job, n)
	for i := 0; i < n; i++ {
		jobs[i] = NewJob([]byte("audio"), "", "")
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			require.NoError(t, queue.Enqueue(job))
		}(jobs[i])
	}
	wg.Wait()

	for _, job := range jobs {
		select {
		case res := <-job.Wait():
			require.NoError(t, res.Err)
		case <-time.After(5 * time.Second):
			t.Fatal("job never delivered")
		}
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&maxActive))
}

func TestWorkerIsolatesConversionFailures(t *testing.T) {
	queue := NewQueue(4)
	history := newMemHistory()

	norm := &stubNormalizer{fn: func(ctx context.Context, src []byte) ([]byte, error) {
		if string(src) == "malformed" {
			return nil, &ConversionError{Diag: "invalid data found when processing input"}
		}
		return src, nil
	}}
	eng := &stubEngine{fn: func(ctx context.Context, wavPath, language, prompt string) (string, error) {
		return "good transcript", nil
	}}

	worker := NewWorker(queue, norm, eng, history, newTestMetrics(), zap.NewNop())

	bad := NewJob([]byte("malformed"), "", "")
	good := NewJob([]byte("valid audio"), "", "")
	require.NoError(t, queue.Enqueue(bad))
	require.NoError(t, queue.Enqueue(good))

	worker.Start()
	defer worker.Stop(context.Background())

	badRes := <-bad.Wait()
	require.Error(t, badRes.Err)
	var convErr *ConversionError
	assert.ErrorAs(t, badRes.Err, &convErr)

	goodRes := <-good.Wait()
	require.NoError(t, goodRes.Err)
	assert.Equal(t, "good transcript", goodRes.Text)

	badRec, err := history.Get(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, badRec.Status)

	goodRec, err := history.Get(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, goodRec.Status)
	assert.Equal(t, "good transcript", goodRec.Text)
}

func TestWorkerRemovesTempWavOnEveryPath(t *testing.T) {
	queue := NewQueue(4)
	history := newMemHistory()

	var mu sync.Mutex
	var wavPaths []string
	eng := &stubEngine{fn: func(ctx context.Context, wavPath, language, prompt string) (string, error) {
		_, statErr := os.Stat(wavPath)
		require.NoError(t, statErr, "wav must exist while the engine runs")
		mu.Lock()
		wavPaths = append(wavPaths, wavPath)
		mu.Unlock()
		if language == "fail" {
			return "", &EngineError{Diag: "model exploded"}
		}
		return "ok", nil
	}}

	worker := NewWorker(queue, &stubNormalizer{}, eng, history, newTestMetrics(), zap.NewNop())

	ok := NewJob([]byte("audio"), "", "")
	failing := NewJob([]byte("audio"), "fail", "")
	require.NoError(t, queue.Enqueue(ok))
	require.NoError(t, queue.Enqueue(failing))

	worker.Start()
	defer worker.Stop(context.Background())

	<-ok.Wait()
	res := <-failing.Wait()
	var engErr *EngineError
	assert.ErrorAs(t, res.Err, &engErr)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range wavPaths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				return false
			}
		}
		return len(wavPaths) == 2
	}, 2*time.Second, 10*time.Millisecond, "temp wav files must be removed after processing")
}

func TestWorkerStopResolvesPendingJobs(t *testing.T) {
	queue := NewQueue(8)
	history := newMemHistory()

	engineStarted := make(chan struct{})
	release := make(chan struct{})
	eng := &stubEngine{fn: func(ctx context.Context, wavPath, language, prompt string) (string, error) {
		close(engineStarted)
		<-release
		return "slow result", nil
	}}

	worker := NewWorker(queue, &stubNormalizer{}, eng, history, newTestMetrics(), zap.NewNop())

	inflight := NewJob([]byte("audio"), "", "")
	pending1 := NewJob([]byte("audio"), "", "")
	pending2 := NewJob([]byte("audio"), "", "")
	require.NoError(t, queue.Enqueue(inflight))
	require.NoError(t, queue.Enqueue(pending1))
	require.NoError(t, queue.Enqueue(pending2))

	worker.Start()
	<-engineStarted

	stopDone := make(chan error, 1)
	go func() {
		stopDone <- worker.Stop(context.Background())
	}()

	// Shutdown must not interrupt the in-flight engine run.
	close(release)

	res := <-inflight.Wait()
	require.NoError(t, res.Err)
	assert.Equal(t, "slow result", res.Text)

	for _, job := range []*Job{pending1, pending2} {
		select {
		case res := <-job.Wait():
			assert.ErrorIs(t, res.Err, ErrQueueClosed)
		case <-time.After(2 * time.Second):
			t.Fatal("pending job wait never resolved during shutdown")
		}
	}

	require.NoError(t, <-stopDone)

	rec, err := history.Get(context.Background(), pending1.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
}
