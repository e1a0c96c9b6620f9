package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_jobs_processed_total",
		Help: "Total number of jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_job_processing_duration_seconds",
		Help:    "Duration of each stage of the video processing pipeline",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})

	ExtractionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_extraction_runs_total",
		Help: "Total number of extraction runs, by terminal status",
	}, []string{"status"})

	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fiapx_extraction_duration_seconds",
		Help:    "Duration of successful extraction runs",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_active_extraction_runs",
		Help: "Number of extraction runs currently processing",
	})

	SampleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fiapx_sample_duration_seconds",
		Help:    "Time to seek and capture one sample",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_frames_sampled_total",
		Help: "Total number of timestamps sampled across all runs",
	})

	FramesKeptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_frames_kept_total",
		Help: "Total number of distinct frames kept across all runs",
	})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_run_events_dropped_total",
		Help: "Run events that could not be delivered, by sink",
	}, []string{"sink"})
)
