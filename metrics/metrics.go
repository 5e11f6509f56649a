package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metrodoc_documents_processed_total",
		Help: "Documents that finished the pipeline, by terminal status.",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metrodoc_stage_duration_seconds",
		Help:    "Wall time spent in each pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})

	ChunkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metrodoc_chunk_failures_total",
		Help: "Per-chunk failures tolerated by the pipeline, by stage.",
	}, []string{"stage"})

	JobRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrodoc_job_retries_total",
		Help: "Processing jobs re-enqueued after a failed attempt.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "metrodoc_queue_depth",
		Help: "Queued processing jobs at the last dispatcher poll.",
	})
)
