package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// answer sources
const (
	SourceCache    = "cache"
	SourceComputed = "computed"
	SourceFallback = "fallback"
)

var (
	AnswersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_total",
		Help:      "Answers produced, by source",
	}, []string{"source"})

	CompletionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "completion_duration_seconds",
		Help:      "Latency of completion calls",
		Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8},
	}, []string{"provider", "outcome"})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Sessions created",
	})

	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_ended_total",
		Help:      "Sessions that reached a terminal state, by state",
	}, []string{"state"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently holding a join code",
	})

	RelayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relay_connections",
		Help:      "Currently bound relay connections",
	})

	RelayFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_frames_total",
		Help:      "Frames routed by the relay, by type and outcome",
	}, []string{"type", "outcome"})

	JanitorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "janitor_removed_total",
		Help:      "Items removed by the periodic janitor, by kind",
	}, []string{"kind"})
)
