package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidmask_jobs_processed_total",
		Help: "Total number of anonymization jobs processed, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidmask_stage_duration_seconds",
		Help:    "Duration of anonymization pipeline stages",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidmask_frames_extracted_total",
		Help: "Total number of frames extracted across all jobs",
	})

	FrameFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidmask_frame_failures_total",
		Help: "Total number of per-frame failures, by stage",
	}, []string{"stage"})

	DetectionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidmask_detection_failures_total",
		Help: "Total number of face detection failures folded into empty results",
	})

	FacesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidmask_faces_detected_total",
		Help: "Total number of faces detected and blurred across all jobs",
	})

	PassThroughTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidmask_pass_through_total",
		Help: "Jobs that degraded to pass-through because face blur was unavailable or disabled",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidmask_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidmask_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
