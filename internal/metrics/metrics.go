package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lucyd_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "lucyd_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	InferenceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "lucyd_inference_latency_seconds",
			Help: "LLM inference latency in seconds",
		},
	)

	SynthesisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "lucyd_synthesis_latency_seconds",
			Help: "Speech synthesis latency in seconds",
		},
	)

	SpeechCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lucyd_speech_cache_hits_total",
			Help: "Speech cache lookups served without synthesis",
		},
	)

	SpeechCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lucyd_speech_cache_misses_total",
			Help: "Speech cache lookups that invoked synthesis",
		},
	)

	WakeDetections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lucyd_wake_detections_total",
			Help: "Total number of wake phrase detections",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lucyd_active_sessions",
			Help: "Number of live conversation sessions",
		},
	)

	TurnCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lucyd_turns_total",
			Help: "Completed dialogue turns by outcome",
		},
		[]string{"input", "outcome"},
	)
)
