package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proctor",
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through the pipeline",
	}, []string{"session_id"})

	FramesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proctor",
		Name:      "frames_skipped_total",
		Help:      "Total number of frames shed by the adaptive skip decision",
	}, []string{"session_id"})

	DetectorInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proctor",
		Name:      "detector_invocations_total",
		Help:      "Total number of detector adapter invocations",
	}, []string{"detector"})

	DetectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proctor",
		Name:      "detector_failures_total",
		Help:      "Total number of detector invocations that returned an error",
	}, []string{"detector"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proctor",
		Name:      "inference_duration_seconds",
		Help:      "Duration of each pipeline stage",
		Buckets:   prometheus.ExponentialBuckets(0.002, 2, 10),
	}, []string{"stage"})

	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proctor",
		Name:      "alerts_fired_total",
		Help:      "Total number of alert kinds that fired",
	}, []string{"kind"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "proctor",
		Name:      "active_sessions",
		Help:      "Number of currently connected proctoring sessions",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "proctor",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections (proctor + monitor)",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proctor",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
