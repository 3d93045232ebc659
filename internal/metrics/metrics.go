// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_requests_total",
		Help: "Device requests by type and outcome",
	}, []string{"type", "outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "traffic_request_duration_seconds",
		Help:    "Time spent serving one device request",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	ConnectionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traffic_connections_rejected_total",
		Help: "Connections refused by the per-IP rate limiter",
	})

	MaintenanceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_maintenance_runs_total",
		Help: "Maintenance task runs by task and outcome",
	}, []string{"task", "outcome"})

	MaintenanceAffected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_maintenance_affected_records_total",
		Help: "Records changed by maintenance tasks",
	}, []string{"task"})

	MaintenanceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "traffic_maintenance_duration_seconds",
		Help:    "Duration of one maintenance run",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"task"})

	RouterCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_router_calls_total",
		Help: "Calls to the external router by outcome",
	}, []string{"outcome"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_events_published_total",
		Help: "Events published to Redis by channel and outcome",
	}, []string{"channel", "outcome"})
)

// Outcome label values
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
