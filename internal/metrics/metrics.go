package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shyra_events_created_total",
		Help: "Total number of events accepted into the registry.",
	})

	EventsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shyra_events_settled_total",
		Help: "Total number of events that reached a terminal status, labelled by status.",
	}, []string{"status"})

	EventsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shyra_events_evicted_total",
		Help: "Total number of events dropped by the retention sweep.",
	})

	EventProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shyra_event_processing_duration_ms",
		Help:    "Time from PROCESSING to a terminal status in milliseconds, retries included.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	})

	EngineAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shyra_engine_attempts_total",
		Help: "Inference engine calls, labelled by outcome (success or the failure kind).",
	}, []string{"outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shyra_active_sessions",
		Help: "Realtime sessions currently registered.",
	})

	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shyra_sessions_expired_total",
		Help: "Total number of sessions ended by the inactivity sweep.",
	})

	RealtimeMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shyra_realtime_messages_total",
		Help: "Realtime frames, labelled by direction and message type.",
	}, []string{"direction", "type"})

	SubmissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shyra_submissions_rejected_total",
		Help: "Event submissions rejected before an event was created, labelled by reason.",
	}, []string{"reason"})
)
