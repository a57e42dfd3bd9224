// Package metrics declares the Prometheus instruments the bot exports.
// Collectors are registered with the default registry via promauto and
// served by the admin HTTP server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsArchived counts archive transitions, labeled by whether the
	// message moved to an archive channel or was edited in place.
	RequestsArchived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "requestbot_requests_archived_total",
		Help: "Requests transitioned to archived, by destination kind.",
	}, []string{"destination"})

	// RequestsCreated counts request insertions, labeled by origin
	// (command, repeat, schedule).
	RequestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "requestbot_requests_created_total",
		Help: "Requests created, by origin.",
	}, []string{"origin"})

	// SweepRuns counts completed sweep iterations, labeled by sweep kind.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "requestbot_sweep_runs_total",
		Help: "Completed background sweep iterations, by kind.",
	}, []string{"kind"})

	// SweepErrors counts per-item failures inside sweeps, labeled by kind.
	SweepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "requestbot_sweep_errors_total",
		Help: "Per-item failures during background sweeps, by kind.",
	}, []string{"kind"})

	// SchedulesDisabled counts schedules permanently disabled after their
	// tracked message disappeared.
	SchedulesDisabled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "requestbot_schedules_disabled_total",
		Help: "Recurring schedules disabled because their message was deleted.",
	})

	// InteractionErrors counts interaction handlers that ended in an error
	// reported back to the user, labeled by handler.
	InteractionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "requestbot_interaction_errors_total",
		Help: "Interaction handlers that failed, by handler.",
	}, []string{"handler"})
)
