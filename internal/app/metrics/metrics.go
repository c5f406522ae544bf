package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the transcription pipeline.
type Metrics struct {
	JobsSubmitted  prometheus.Counter
	JobsCompleted  *prometheus.CounterVec
	CallerTimeouts prometheus.Counter
	QueueDepth     prometheus.Gauge

	ConvertDuration    prometheus.Histogram
	TranscribeDuration prometheus.Histogram
}

// Completion outcome label values.
const (
	OutcomeSucceeded        = "succeeded"
	OutcomeConversionFailed = "conversion_failed"
	OutcomeEngineFailed     = "engine_failed"
	OutcomeQueueClosed      = "queue_closed"
)

// New creates and registers all metrics against the given registerer.
// Tests pass a fresh registry to avoid cross-test registration clashes.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_jobs_submitted_total",
			Help: "Total number of transcription jobs accepted onto the queue",
		}),
		JobsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_jobs_completed_total",
			Help: "Total number of jobs that reached a terminal state, by outcome",
		}, []string{"outcome"}),
		CallerTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_caller_timeouts_total",
			Help: "Total number of callers that stopped waiting before their job finished",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_queue_depth",
			Help: "Current number of jobs waiting for the worker",
		}),
		ConvertDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_convert_duration_seconds",
			Help:    "Time spent normalizing uploaded audio with ffmpeg",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),
		TranscribeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_transcribe_duration_seconds",
			Help:    "Time spent inside the whisper.cpp engine per job",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
		}),
	}
}
